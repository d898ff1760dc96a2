// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package sim implements a simulated channel Line.
//
// A simulated Line records every frame written to it. It can optionally pace
// itself to the real duration of each frame's waveform, and can be held to
// simulate a stalled transmission.
package sim

import (
	"sync"
	"time"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/protocol"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Line is a simulated channel.Line.
type Line struct {
	// Pin is the pin that this Line was opened on.
	Pin string
	// Rate is the tick rate of the Symbols written to this Line.
	Rate physic.Frequency
	// RealTime, if true, causes EndFrame to sleep for the duration of the
	// frame's waveform.
	RealTime bool

	mu         sync.Mutex
	cur        []protocol.Symbol
	frames     [][]protocol.Symbol
	blockSizes []int
	aborted    int
	writeErr   error
	// failAfter is the number of writes that succeed before writeErr applies.
	failAfter int
	closed    bool

	// gate, if not nil, blocks EndFrame until it is closed.
	gate    chan struct{}
	holding int
}

var _ channel.Line = (*Line)(nil)

// WriteBlock implements channel.Line.
func (l *Line) WriteBlock(block []protocol.Symbol) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return errors.New("line is closed")
	case l.writeErr != nil:
		if l.failAfter <= 0 {
			return l.writeErr
		}
		l.failAfter--
	}

	l.cur = append(l.cur, block...)
	l.blockSizes = append(l.blockSizes, len(block))
	return nil
}

// EndFrame implements channel.Line.
func (l *Line) EndFrame() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("line is closed")
	}
	frame := l.cur
	l.cur = nil
	l.frames = append(l.frames, frame)
	gate := l.gate
	if gate != nil {
		l.holding++
	}
	l.mu.Unlock()

	if l.RealTime && l.Rate > 0 {
		var ticks int64
		for _, s := range frame {
			ticks += s.Ticks()
		}
		time.Sleep(time.Duration(ticks) * l.Rate.Period())
	}

	if gate != nil {
		<-gate

		l.mu.Lock()
		l.holding--
		l.mu.Unlock()
	}
	return nil
}

// AbortFrame implements channel.Line.
func (l *Line) AbortFrame() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cur = nil
	l.aborted++
}

// Aborted returns the number of times AbortFrame has been called.
func (l *Line) Aborted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aborted
}

// Pending returns the Symbols written since the last EndFrame or AbortFrame.
func (l *Line) Pending() []protocol.Symbol {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protocol.Symbol(nil), l.cur...)
}

// Close implements channel.Line.
//
// Close releases any held frame.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.New("line is already closed")
	}
	l.closed = true
	l.releaseLocked()
	return nil
}

// Hold causes subsequent frames to block in EndFrame until Release is called.
func (l *Line) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gate == nil {
		l.gate = make(chan struct{})
	}
}

// Release unblocks any held frames, and stops holding new ones.
func (l *Line) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
}

func (l *Line) releaseLocked() {
	if l.gate != nil {
		close(l.gate)
		l.gate = nil
	}
}

// Holding returns the number of frames currently blocked by Hold.
func (l *Line) Holding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holding
}

// FailWith causes subsequent WriteBlock calls to return err. If err is nil,
// writes succeed again.
func (l *Line) FailWith(err error) { l.FailAfter(0, err) }

// FailAfter lets the next n WriteBlock calls succeed, then causes the ones
// after them to return err.
func (l *Line) FailAfter(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr, l.failAfter = err, n
}

// Frames returns a copy of the frames that have been ended on this Line.
func (l *Line) Frames() [][]protocol.Symbol {
	l.mu.Lock()
	defer l.mu.Unlock()

	frames := make([][]protocol.Symbol, len(l.frames))
	copy(frames, l.frames)
	return frames
}

// FrameCount returns the number of frames that have been ended on this Line.
func (l *Line) FrameCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// LastFrame returns the most recently ended frame, or nil if there is none.
func (l *Line) LastFrame() []protocol.Symbol {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

// BlockSizes returns the size of every block written to this Line.
func (l *Line) BlockSizes() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.blockSizes...)
}

// Closed returns true if the Line has been closed.
func (l *Line) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Opener is a channel.Opener that opens simulated Lines.
type Opener struct {
	// RealTime is applied to every Line that is opened.
	RealTime bool
	// Err, if not nil, is returned by OpenLine instead of a Line.
	Err error

	mu    sync.Mutex
	lines map[string]*Line
}

var _ channel.Opener = (*Opener)(nil)

// OpenLine implements channel.Opener.
func (o *Opener) OpenLine(pin string, rate physic.Frequency) (channel.Line, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	if l := o.lines[pin]; l != nil && !l.Closed() {
		return nil, errors.Errorf("pin %q is already open", pin)
	}

	l := &Line{
		Pin:      pin,
		Rate:     rate,
		RealTime: o.RealTime,
	}
	if o.lines == nil {
		o.lines = make(map[string]*Line)
	}
	o.lines[pin] = l
	return l, nil
}

// Line returns the most recent Line opened on pin, or nil if none was opened.
func (o *Opener) Line(pin string) *Line {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines[pin]
}
