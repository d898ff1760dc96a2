// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package matrix

import (
	"fmt"
	"image"
	"strings"

	"github.com/danjacques/goledstrip/pixel"

	"github.com/pkg/errors"
)

// Resolution is the size of a matrix, in pixels.
type Resolution struct {
	X int
	Y int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.X, r.Y) }

// Count returns the number of pixels in the matrix.
func (r Resolution) Count() int { return r.X * r.Y }

// IsValid returns true if r has at least one pixel.
func (r Resolution) IsValid() bool { return r.X > 0 && r.Y > 0 }

// Contains returns true if p is within the matrix.
func (r Resolution) Contains(p Point) bool { return p.X >= 0 && p.X < r.X && p.Y >= 0 && p.Y < r.Y }

// Point is a matrix coordinate. (0, 0) is the first pixel of the first row.
type Point struct {
	X int
	Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Layout maps matrix coordinates to strip indices.
type Layout interface {
	// Index returns the strip index of p. p must be within the matrix.
	Index(p Point) int
	// Point returns the matrix coordinate of strip index i. i must be within
	// the matrix.
	Point(i int) Point
}

// Serpentine is the Layout of a matrix wired in a zig-zag: even rows run
// left to right, and odd rows run right to left.
type Serpentine Resolution

// Index implements Layout.
func (s Serpentine) Index(p Point) int {
	rowStart := p.Y * s.X
	if p.Y%2 == 0 {
		return rowStart + p.X
	}
	return rowStart + s.X - p.X - 1
}

// Point implements Layout.
func (s Serpentine) Point(i int) Point {
	p := Point{X: i % s.X, Y: i / s.X}
	if p.Y%2 != 0 {
		p.X = s.X - p.X - 1
	}
	return p
}

// Progressive is the Layout of a matrix whose rows all run left to right.
type Progressive Resolution

// Index implements Layout.
func (pr Progressive) Index(p Point) int { return p.Y*pr.X + p.X }

// Point implements Layout.
func (pr Progressive) Point(i int) Point { return Point{X: i % pr.X, Y: i / pr.X} }

// Wiring names a Layout.
type Wiring int

const (
	// WiringSerpentine selects the Serpentine layout.
	WiringSerpentine Wiring = iota
	// WiringProgressive selects the Progressive layout.
	WiringProgressive
)

func (w Wiring) String() string {
	switch w {
	case WiringSerpentine:
		return "serpentine"
	case WiringProgressive:
		return "progressive"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Wiring) UnmarshalText(text []byte) error {
	for _, v := range []Wiring{WiringSerpentine, WiringProgressive} {
		if strings.EqualFold(v.String(), string(text)) {
			*w = v
			return nil
		}
	}
	return errors.Errorf("unknown wiring: %q", text)
}

// MarshalText implements encoding.TextMarshaler.
func (w Wiring) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// Layout returns the Layout of this wiring for a matrix of resolution r.
func (w Wiring) Layout(r Resolution) Layout {
	if w == WiringProgressive {
		return Progressive(r)
	}
	return Serpentine(r)
}

// Render draws the pixels in pb onto an image of resolution r, placing each
// strip index according to l. Pixels beyond the end of pb are black.
func Render(l Layout, r Resolution, pb *pixel.Buffer) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.X, r.Y))
	for i := 0; i < r.Count(); i++ {
		p := l.Point(i)
		img.Set(p.X, p.Y, pb.Pixel(i))
	}
	return img
}
