// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package protocol

import (
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Decoder recovers frame bytes from a sequence of Symbols.
//
// Decoder is the inverse of Encoder. It is used to inspect recorded or
// simulated waveforms.
type Decoder struct {
	threshold uint16
	msbFirst  bool
}

// NewDecoder returns a Decoder for waveforms generated from p at rate.
func NewDecoder(p timing.Profile, rate physic.Frequency) (*Decoder, error) {
	enc, err := NewEncoder(p, rate)
	if err != nil {
		return nil, err
	}

	// A data Symbol is a 1 if its high time is closer to the 1-bit high time
	// than the 0-bit high time.
	return &Decoder{
		threshold: (enc.bit0.Duration0 + enc.bit1.Duration0 + 1) / 2,
		msbFirst:  p.MSBFirst,
	}, nil
}

// Decode decodes the data Symbols in symbols into bytes. Reset Symbols are
// skipped.
//
// Decode returns an error if symbols holds a Symbol that is neither a data bit
// nor a reset, or if its data bits do not form a whole number of bytes.
func (d *Decoder) Decode(symbols []Symbol) ([]byte, error) {
	data := make([]byte, 0, len(symbols)/8)
	var cur byte
	bits := uint(0)

	for i, s := range symbols {
		switch {
		case s.IsReset():
			continue
		case !s.Level0 || s.Level1:
			return nil, errors.Errorf("symbol #%d (%s) is not a data bit", i, s)
		}

		if s.Duration0 >= d.threshold {
			if d.msbFirst {
				cur |= 0x80 >> bits
			} else {
				cur |= 0x01 << bits
			}
		}
		if bits++; bits == 8 {
			data = append(data, cur)
			cur, bits = 0, 0
		}
	}

	if bits != 0 {
		return nil, errors.Errorf("trailing partial byte (%d bits)", bits)
	}
	return data, nil
}

// Latched returns true if symbols ends with a reset pulse.
func Latched(symbols []Symbol) bool {
	return len(symbols) > 0 && symbols[len(symbols)-1].IsReset()
}
