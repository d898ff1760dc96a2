// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package protocol implements the single-wire LED strip waveform encoding.
//
// A frame of pixel bytes is encoded into a sequence of Symbols, each of which
// describes two timed line levels. Every data bit becomes one Symbol, and the
// frame is terminated by a low reset pulse that latches it into the strip.
//
// Hardware channels hold only a small block of Symbols at a time, so the
// Encoder is resumable: it encodes as much of a frame as fits into the memory
// it is offered, and continues from where it stopped on the next call.
package protocol

import (
	"fmt"
)

// MaxDuration is the largest duration, in ticks, that a Symbol half can hold.
// Symbol durations are 15-bit fields.
const MaxDuration = 0x7FFF

// Symbol is a single two-level waveform element.
//
// The line is held at Level0 for Duration0 ticks, then at Level1 for Duration1
// ticks. A true level is high.
type Symbol struct {
	Duration0 uint16
	Level0    bool
	Duration1 uint16
	Level1    bool
}

// Ticks returns the total duration of s, in ticks.
func (s Symbol) Ticks() int64 { return int64(s.Duration0) + int64(s.Duration1) }

// IsReset returns true if s holds the line low for both of its halves.
func (s Symbol) IsReset() bool { return !s.Level0 && !s.Level1 }

func (s Symbol) String() string {
	return fmt.Sprintf("{%d:%s %d:%s}", s.Duration0, levelString(s.Level0), s.Duration1, levelString(s.Level1))
}

func levelString(v bool) string {
	if v {
		return "H"
	}
	return "L"
}
