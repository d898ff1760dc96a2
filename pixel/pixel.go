// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

import (
	"fmt"
	"image/color"
)

// P is the logical color of a single pixel.
//
// P is always expressed in red, green, blue order. The order that a given LED
// chip expects its channels in is handled by Order.
type P struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// Named logical colors.
var (
	Black = P{}
	Red   = P{Red: 0xFF}
	Green = P{Green: 0xFF}
	Blue  = P{Blue: 0xFF}
	White = P{Red: 0xFF, Green: 0xFF, Blue: 0xFF}
)

var _ color.Color = P{}

func (p P) String() string { return fmt.Sprintf("(%d, %d, %d)", p.Red, p.Green, p.Blue) }

// RGBA implements color.Color. P is always fully opaque.
func (p P) RGBA() (r, g, b, a uint32) {
	r = uint32(p.Red)
	r |= r << 8
	g = uint32(p.Green)
	g |= g << 8
	b = uint32(p.Blue)
	b |= b << 8
	a = 0xFFFF
	return
}

// FromColor converts an arbitrary color.Color into a P.
func FromColor(c color.Color) P {
	if p, ok := c.(P); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return P{
		Red:   uint8(r >> 8),
		Green: uint8(g >> 8),
		Blue:  uint8(b >> 8),
	}
}

// Scale returns p with each channel scaled by level/255.
//
// A level of 0xFF returns p unchanged, and a level of 0 returns Black.
func (p P) Scale(level uint8) P {
	return P{
		Red:   scaleChannel(p.Red, level),
		Green: scaleChannel(p.Green, level),
		Blue:  scaleChannel(p.Blue, level),
	}
}

func scaleChannel(v, level uint8) uint8 { return uint8((uint(v) * uint(level)) / 0xFF) }
