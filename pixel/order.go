// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

import (
	"strings"

	"github.com/pkg/errors"
)

// Order is the order in which an LED chip expects its color channels on the
// wire.
type Order uint8

const (
	// RGB is the red, green, blue channel order.
	RGB Order = iota
	// RBG is the red, blue, green channel order.
	RBG
	// GBR is the green, blue, red channel order.
	GBR
	// GRB is the green, red, blue channel order. WS2812B chips use this.
	GRB
	// BGR is the blue, green, red channel order.
	BGR
	// BRG is the blue, red, green channel order.
	BRG

	orderCount
)

// Channel offsets within a logical P.
const (
	chRed = iota
	chGreen
	chBlue
)

var orderNames = [orderCount]string{
	RGB: "RGB",
	RBG: "RBG",
	GBR: "GBR",
	GRB: "GRB",
	BGR: "BGR",
	BRG: "BRG",
}

// orderChannels maps each wire position to the logical channel stored there.
var orderChannels = [orderCount][3]int{
	RGB: {chRed, chGreen, chBlue},
	RBG: {chRed, chBlue, chGreen},
	GBR: {chGreen, chBlue, chRed},
	GRB: {chGreen, chRed, chBlue},
	BGR: {chBlue, chGreen, chRed},
	BRG: {chBlue, chRed, chGreen},
}

// Raw is a single pixel as it is stored for a chip, in that chip's Order.
type Raw [3]byte

// Palette is the set of named colors, expressed in a specific Order.
type Palette struct {
	Black Raw
	Red   Raw
	Green Raw
	Blue  Raw
	White Raw
}

func (o Order) String() string {
	if o.IsValid() {
		return orderNames[o]
	}
	return "Order(?)"
}

// IsValid returns true if o is a known Order.
func (o Order) IsValid() bool { return o < orderCount }

// ParseOrder parses an Order from its name. Parsing is case-insensitive.
func ParseOrder(v string) (Order, error) {
	v = strings.ToUpper(v)
	for i, name := range orderNames {
		if name == v {
			return Order(i), nil
		}
	}
	return 0, errors.Errorf("unknown color order: %q", v)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	v, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, errors.Errorf("invalid color order: %d", o)
	}
	return []byte(o.String()), nil
}

// Encode stores p in o's channel order.
func (o Order) Encode(p P) (r Raw) {
	logical := [3]byte{p.Red, p.Green, p.Blue}
	for i, ch := range orderChannels[o] {
		r[i] = logical[ch]
	}
	return
}

// Decode loads a logical P from r, which is stored in o's channel order.
func (o Order) Decode(r Raw) P {
	var logical [3]byte
	for i, ch := range orderChannels[o] {
		logical[ch] = r[i]
	}
	return P{Red: logical[chRed], Green: logical[chGreen], Blue: logical[chBlue]}
}

// Palette returns the named colors stored in o's channel order.
func (o Order) Palette() Palette {
	return Palette{
		Black: o.Encode(Black),
		Red:   o.Encode(Red),
		Green: o.Encode(Green),
		Blue:  o.Encode(Blue),
		White: o.Encode(White),
	}
}

// Convert reorders the channels of r from one Order to another.
func Convert(r Raw, from, to Order) Raw {
	if from == to {
		return r
	}
	return to.Encode(from.Decode(r))
}
