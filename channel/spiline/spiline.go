// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package spiline implements a channel Line on an SPI port's data-out pin.
//
// The SPI port is clocked at the channel's tick rate, so every SPI bit is one
// tick of the waveform. Each Symbol is rasterized into the bits that hold its
// two levels for their durations, and a whole frame is sent in one
// transaction so the line is never left idle mid-frame.
package spiline

import (
	"io"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/protocol"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Line is a channel.Line that writes its waveform to an SPI connection.
type Line struct {
	conn   spi.Conn
	closer io.Closer

	// maxTx is the largest transaction the connection accepts, or 0 if it is
	// unbounded.
	maxTx int

	bits raster
}

var _ channel.Line = (*Line)(nil)

// New connects to port at rate and returns a Line that writes to it.
//
// If closer is not nil, it will be closed when the Line is closed.
func New(port spi.Port, rate physic.Frequency, closer io.Closer) (*Line, error) {
	c, err := port.Connect(rate, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s at %s", port, rate)
	}

	l := Line{
		conn:   c,
		closer: closer,
	}
	if lim, ok := c.(conn.Limits); ok {
		l.maxTx = lim.MaxTxSize()
	}
	return &l, nil
}

// WriteBlock implements channel.Line.
func (l *Line) WriteBlock(block []protocol.Symbol) error {
	for _, s := range block {
		l.bits.add(s.Level0, int(s.Duration0))
		l.bits.add(s.Level1, int(s.Duration1))
	}
	return nil
}

// EndFrame implements channel.Line. It transmits the rasterized frame.
func (l *Line) EndFrame() error {
	defer l.bits.reset()

	buf := l.bits.bytes()
	for len(buf) > 0 {
		chunk := buf
		if l.maxTx > 0 && len(chunk) > l.maxTx {
			chunk = chunk[:l.maxTx]
		}
		if err := l.conn.Tx(chunk, nil); err != nil {
			return errors.Wrapf(err, "writing %d bytes to %s", len(chunk), l.conn)
		}
		buf = buf[len(chunk):]
	}
	return nil
}

// AbortFrame implements channel.Line. The rasterized frame is discarded
// without being sent.
func (l *Line) AbortFrame() { l.bits.reset() }

// Close implements channel.Line.
func (l *Line) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Opener is a channel.Opener that opens SPI ports through spireg. The pin is
// the SPI port name; an empty name selects the first available port.
type Opener struct{}

var _ channel.Opener = Opener{}

// OpenLine implements channel.Opener.
func (Opener) OpenLine(pin string, rate physic.Frequency) (channel.Line, error) {
	p, err := spireg.Open(pin)
	if err != nil {
		return nil, errors.Wrapf(err, "opening SPI port %q", pin)
	}

	l, err := New(p, rate, p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return l, nil
}

// raster accumulates bits, most significant bit first. Unused trailing bits
// are low.
type raster struct {
	buf   []byte
	nbits int
}

func (r *raster) add(level bool, count int) {
	for ; count > 0; count-- {
		if r.nbits%8 == 0 {
			r.buf = append(r.buf, 0)
		}
		if level {
			r.buf[len(r.buf)-1] |= 0x80 >> uint(r.nbits%8)
		}
		r.nbits++
	}
}

func (r *raster) bytes() []byte { return r.buf }

func (r *raster) reset() {
	r.buf = r.buf[:0]
	r.nbits = 0
}
