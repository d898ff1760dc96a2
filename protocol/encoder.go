// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package protocol

import (
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// State is the phase of an Encoder.
type State int

const (
	// Idle means that no frame is being encoded.
	Idle State = iota
	// Data means that the Encoder is emitting pixel data bits.
	Data
	// Reset means that all data has been emitted, and the Encoder is emitting
	// the latching reset pulse.
	Reset
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Data:
		return "Data"
	case Reset:
		return "Reset"
	default:
		return "State(?)"
	}
}

// Status is the outcome of a single Encode call.
type Status int

const (
	// Continue means that all data bits have been emitted, but the reset pulse
	// did not fit into the remaining memory. The caller should flush what was
	// written and call Encode again to emit the reset.
	Continue Status = iota
	// MemoryFull means that the supplied memory was exhausted before the frame
	// was finished.
	MemoryFull
	// Complete means that the entire frame, including its reset pulse, has
	// been emitted. The Encoder has returned to Idle.
	Complete
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "Continue"
	case MemoryFull:
		return "MemoryFull"
	case Complete:
		return "Complete"
	default:
		return "Status(?)"
	}
}

// Encoder converts frames of pixel bytes into Symbols.
//
// An Encoder tracks its own position within the frame being encoded, so the
// caller must pass the same frame bytes to every Encode call until Complete
// is returned. Chunked encoding produces exactly the same Symbols, in the
// same order, as a single Encode call with unbounded memory.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	bit0     Symbol
	bit1     Symbol
	msbFirst bool
	reset    []Symbol

	state State
	// byteIndex and bitIndex are the position of the next data bit.
	byteIndex int
	bitIndex  uint
	// resetIndex is the next Symbol of reset to emit.
	resetIndex int
}

// NewEncoder creates an Encoder that emits p's waveform with Symbol
// durations expressed in ticks at rate.
//
// NewEncoder returns an error if any of p's timings cannot be represented at
// rate.
func NewEncoder(p timing.Profile, rate physic.Frequency) (*Encoder, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	durations := []struct {
		name string
		v    int64
	}{
		{"bit 0 high", timing.Ticks(p.Bit0High, rate)},
		{"bit 0 low", timing.Ticks(p.Bit0Low, rate)},
		{"bit 1 high", timing.Ticks(p.Bit1High, rate)},
		{"bit 1 low", timing.Ticks(p.Bit1Low, rate)},
	}
	for _, d := range durations {
		if d.v <= 0 || d.v > MaxDuration {
			return nil, errors.Errorf("%s duration (%d ticks) is not representable at %s", d.name, d.v, rate)
		}
	}

	resetTicks := timing.Ticks(p.ResetMinimum, rate)
	if resetTicks < 2 {
		return nil, errors.Errorf("reset duration (%d ticks) is not representable at %s", resetTicks, rate)
	}

	return &Encoder{
		bit0: Symbol{
			Duration0: uint16(durations[0].v), Level0: true,
			Duration1: uint16(durations[1].v), Level1: false,
		},
		bit1: Symbol{
			Duration0: uint16(durations[2].v), Level0: true,
			Duration1: uint16(durations[3].v), Level1: false,
		},
		msbFirst: p.MSBFirst,
		reset:    buildReset(resetTicks),
	}, nil
}

// buildReset splits a low pulse of total ticks into as few Symbols as can
// hold it, with their durations spread as evenly as possible.
func buildReset(total int64) []Symbol {
	const perSymbol = 2 * MaxDuration
	count := (total + perSymbol - 1) / perSymbol

	reset := make([]Symbol, count)
	for i := range reset {
		// Distribute any remainder over the leading symbols.
		chunk := total / count
		if int64(i) < total%count {
			chunk++
		}
		reset[i] = Symbol{
			Duration0: uint16(chunk - chunk/2),
			Duration1: uint16(chunk / 2),
		}
	}
	return reset
}

// State returns the Encoder's current phase.
func (e *Encoder) State() State { return e.state }

// Bit returns the Symbol used to encode a single bit value.
func (e *Encoder) Bit(v bool) Symbol {
	if v {
		return e.bit1
	}
	return e.bit0
}

// ResetSymbols returns the Symbols that make up the reset pulse.
//
// The returned slice must not be modified.
func (e *Encoder) ResetSymbols() []Symbol { return e.reset }

// FrameSymbols returns the total number of Symbols needed to encode a frame of
// size bytes, including its reset pulse.
func (e *Encoder) FrameSymbols(size int) int { return (size * 8) + len(e.reset) }

// Reset forcibly abandons any in-progress frame and returns to Idle.
func (e *Encoder) Reset() {
	e.state = Idle
	e.byteIndex, e.bitIndex, e.resetIndex = 0, 0, 0
}

// Encode emits as much of the frame held in data as fits into mem, returning
// the number of Symbols written.
//
// If the Encoder is Idle, Encode begins a new frame.
func (e *Encoder) Encode(data []byte, mem []Symbol) (int, Status) {
	n := 0
	if e.state == Idle {
		e.state = Data
		e.byteIndex, e.bitIndex, e.resetIndex = 0, 0, 0
	}

	if e.state == Data {
		n = e.encodeData(data, mem)
		if e.byteIndex < len(data) {
			return n, MemoryFull
		}
		e.state = Reset

		// The reset pulse is not split behind data. If it doesn't fit in what
		// remains, defer it to the next call.
		if n > 0 && len(mem)-n < len(e.reset) {
			return n, Continue
		}
	}

	written := copy(mem[n:], e.reset[e.resetIndex:])
	n += written
	e.resetIndex += written
	if e.resetIndex < len(e.reset) {
		return n, MemoryFull
	}

	e.Reset()
	return n, Complete
}

func (e *Encoder) encodeData(data []byte, mem []Symbol) (n int) {
	for n < len(mem) && e.byteIndex < len(data) {
		b := data[e.byteIndex]

		var set bool
		if e.msbFirst {
			set = b&(0x80>>e.bitIndex) != 0
		} else {
			set = b&(0x01<<e.bitIndex) != 0
		}
		mem[n] = e.Bit(set)
		n++

		if e.bitIndex++; e.bitIndex == 8 {
			e.bitIndex = 0
			e.byteIndex++
		}
	}
	return
}
