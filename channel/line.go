// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"github.com/danjacques/goledstrip/protocol"

	"periph.io/x/conn/v3/physic"
)

// Line is the physical output of a Channel.
//
// A Line receives a frame as a series of Symbol blocks, followed by EndFrame.
// If a frame fails partway through, AbortFrame is called instead, and the
// Symbols written since the last EndFrame must never reach the line.
// A Line is only ever driven by a single Channel worker, and need not be safe
// for concurrent use by its writer.
type Line interface {
	// WriteBlock writes a block of Symbols to the line.
	//
	// The block is only valid for the duration of the call.
	WriteBlock(block []protocol.Symbol) error
	// EndFrame marks the end of the current frame.
	EndFrame() error
	// AbortFrame discards any Symbols written since the last EndFrame.
	AbortFrame()
	// Close releases the Line.
	Close() error
}

// Opener opens a Line for a named output pin.
type Opener interface {
	// OpenLine opens the Line on pin, clocked at rate.
	OpenLine(pin string, rate physic.Frequency) (Line, error)
}

// OpenerFunc is an Opener implemented as a function.
type OpenerFunc func(pin string, rate physic.Frequency) (Line, error)

// OpenLine implements Opener.
func (fn OpenerFunc) OpenLine(pin string, rate physic.Frequency) (Line, error) { return fn(pin, rate) }

// Tee returns a Line that duplicates everything written to it to each of
// lines, in order.
//
// Every line receives every call. The first error encountered is returned.
func Tee(lines ...Line) Line {
	if len(lines) == 1 {
		return lines[0]
	}
	return teeLine(lines)
}

type teeLine []Line

func (tl teeLine) WriteBlock(block []protocol.Symbol) error {
	return tl.each(func(l Line) error { return l.WriteBlock(block) })
}

func (tl teeLine) EndFrame() error { return tl.each(Line.EndFrame) }

func (tl teeLine) AbortFrame() {
	for _, l := range tl {
		l.AbortFrame()
	}
}

func (tl teeLine) Close() error { return tl.each(Line.Close) }

func (tl teeLine) each(fn func(Line) error) (err error) {
	for _, l := range tl {
		if lerr := fn(l); lerr != nil && err == nil {
			err = lerr
		}
	}
	return
}
