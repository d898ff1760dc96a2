// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package channel implements an asynchronous waveform transmit channel.
//
// A Channel accepts frames of pixel bytes and transmits them, one at a time,
// through a protocol.Encoder onto a Line. The Channel exposes a bounded
// symbol memory block, which limits how much of a frame is encoded per
// Encoder call, and a bounded queue of in-flight transmissions.
package channel

import (
	"context"
	"sync"

	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/bufferpool"
	"github.com/danjacques/goledstrip/support/logging"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrClosed is returned when operating on a closed Channel.
	ErrClosed = errors.New("channel is closed")
	// ErrNotEnabled is returned when transmitting on a Channel that has not been
	// enabled.
	ErrNotEnabled = errors.New("channel is not enabled")
)

// Config configures a Channel.
type Config struct {
	// Pin is the name of the output pin. It is used for identification.
	Pin string

	// Resolution is the tick rate of the Channel's Symbols.
	Resolution physic.Frequency

	// MemoryBlockSymbols is the number of Symbols that the Channel encodes and
	// writes at a time. It must be at least 1.
	MemoryBlockSymbols int

	// QueueDepth is the maximum number of submitted transmissions that have not
	// yet started. It must be at least 1.
	QueueDepth int

	// Logger, if not nil, is the logger to use.
	Logger logging.L
}

// Validate checks that cfg is usable.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Resolution <= 0:
		return errors.Errorf("invalid resolution: %s", cfg.Resolution)
	case cfg.MemoryBlockSymbols < 1:
		return errors.Errorf("memory block must hold at least one symbol (%d)", cfg.MemoryBlockSymbols)
	case cfg.QueueDepth < 1:
		return errors.Errorf("queue depth must be at least 1 (%d)", cfg.QueueDepth)
	}
	return nil
}

type transaction struct {
	enc  *protocol.Encoder
	data *bufferpool.Buffer
}

// Channel transmits frames onto a Line.
//
// A Channel owns its Line, and closes it on Close.
//
// Transmit, WaitAllDone, and Close are safe for concurrent use.
type Channel struct {
	cfg    Config
	logger logging.L
	line   *monitoredLine

	queue chan *transaction
	mem   []protocol.Symbol

	mu sync.Mutex
	// pending is the number of submitted transactions that have not completed.
	pending int
	// idleC is closed when pending drops to zero.
	idleC chan struct{}
	// lastErr is the first transmit error since the last WaitAllDone.
	lastErr error
	enabled bool
	closed  bool

	stopC      chan struct{}
	workerDone chan struct{}
}

// New creates a new Channel that transmits onto line.
//
// The Channel takes ownership of line only if New succeeds.
func New(line Line, cfg Config) (*Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idleC := make(chan struct{})
	close(idleC)

	return &Channel{
		cfg:        cfg,
		logger:     logging.WithField(cfg.Logger, "pin", cfg.Pin),
		line:       monitorLine(cfg.Pin, line),
		queue:      make(chan *transaction, cfg.QueueDepth),
		mem:        make([]protocol.Symbol, cfg.MemoryBlockSymbols),
		idleC:      idleC,
		stopC:      make(chan struct{}),
		workerDone: make(chan struct{}),
	}, nil
}

// Config returns the Channel's configuration.
func (c *Channel) Config() Config { return c.cfg }

// Enable starts the Channel's transmit worker.
func (c *Channel) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrClosed
	case c.enabled:
		return nil
	}

	c.enabled = true
	go c.run()
	c.logger.Infof("Enabled channel on pin %q (%s, block=%d, queue=%d).",
		c.cfg.Pin, c.cfg.Resolution, c.cfg.MemoryBlockSymbols, c.cfg.QueueDepth)
	return nil
}

// Transmit submits data for transmission through enc.
//
// Transmit takes ownership of data, and will Release it when the transmission
// has finished. Transmit returns once the transmission is queued; if the
// queue is full, it blocks until there is room or ctx is cancelled.
func (c *Channel) Transmit(ctx context.Context, enc *protocol.Encoder, data *bufferpool.Buffer) error {
	if err := c.beginTransaction(); err != nil {
		data.Release()
		return err
	}

	t := transaction{
		enc:  enc,
		data: data,
	}
	select {
	case c.queue <- &t:
		return nil
	case <-ctx.Done():
		c.endTransaction(nil)
		data.Release()
		return ctx.Err()
	case <-c.stopC:
		c.endTransaction(nil)
		data.Release()
		return ErrClosed
	}
}

// WaitAllDone blocks until every submitted transmission has completed, or
// until ctx is cancelled.
//
// If any transmission failed since the last WaitAllDone, its error is
// returned.
func (c *Channel) WaitAllDone(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	idleC := c.idleC
	c.mu.Unlock()

	select {
	case <-idleC:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.lastErr
	c.lastErr = nil
	return err
}

// Busy returns true if any submitted transmission has not completed.
func (c *Channel) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Close stops the Channel and closes its Line.
//
// A transmission that is already being written is finished first. Queued
// transmissions that have not started are discarded, including any that a
// concurrent Transmit enqueues while Close is running.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	enabled := c.enabled
	c.mu.Unlock()

	close(c.stopC)
	if enabled {
		<-c.workerDone
	}

	// Discard everything left in the queue. A Transmit that passed
	// beginTransaction before we closed still holds a pending slot, and will
	// either enqueue or observe stopC, so wait until pending drains to zero.
	// No new transactions can begin, so idleC is not replaced.
	c.mu.Lock()
	idleC := c.idleC
	c.mu.Unlock()
	for {
		select {
		case t := <-c.queue:
			t.data.Release()
			c.endTransaction(ErrClosed)
		case <-idleC:
			return c.line.Close()
		}
	}
}

func (c *Channel) beginTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrClosed
	case !c.enabled:
		return ErrNotEnabled
	}

	if c.pending == 0 {
		c.idleC = make(chan struct{})
	}
	c.pending++
	c.line.setQueued(c.pending)
	return nil
}

func (c *Channel) endTransaction(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil && c.lastErr == nil {
		c.lastErr = err
	}

	c.pending--
	c.line.setQueued(c.pending)
	if c.pending == 0 {
		close(c.idleC)
	}
}

func (c *Channel) run() {
	defer close(c.workerDone)

	for {
		select {
		case <-c.stopC:
			return

		case t := <-c.queue:
			err := c.transmit(t)
			t.data.Release()
			if err != nil {
				c.logger.Warnf("Failed to transmit frame on pin %q: %s", c.cfg.Pin, err)
			}
			c.endTransaction(err)
		}
	}
}

// transmit encodes a transaction one memory block at a time, writing each
// block to the Line.
func (c *Channel) transmit(t *transaction) error {
	data := t.data.Bytes()
	for {
		n, st := t.enc.Encode(data, c.mem)
		if n > 0 {
			if err := c.line.WriteBlock(c.mem[:n]); err != nil {
				c.abort(t)
				return errors.Wrap(err, "writing block")
			}
		}

		switch {
		case st == protocol.Complete:
			if err := c.line.EndFrame(); err != nil {
				c.abort(t)
				return errors.Wrap(err, "ending frame")
			}
			return nil

		case n == 0:
			c.abort(t)
			return errors.Errorf("encoder made no progress (%s)", st)
		}
	}
}

// abort discards a partially-transmitted frame, so that none of its Symbols
// precede the next frame.
func (c *Channel) abort(t *transaction) {
	t.enc.Reset()
	c.line.AbortFrame()
}
