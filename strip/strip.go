// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package strip implements a driver for a chain of addressable LEDs on a
// single data line.
//
// A Strip holds a pixel buffer in the chip's channel order. Mutations only
// affect the buffer; Update snapshots the buffer and submits it to the
// Strip's transmit channel.
package strip

import (
	"context"
	"time"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/bufferpool"
	"github.com/danjacques/goledstrip/support/fmtutil"
	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"periph.io/x/conn/v3/physic"
)

// DefaultUpdateTimeout is the default amount of time that Update will wait for
// the previous transmission to complete.
const DefaultUpdateTimeout = time.Second

// MaxBrightness is the brightness level at which colors are unscaled.
const MaxBrightness = 0xFF

// State is the state of a Strip.
type State int

const (
	// Uninitialized is the state of a Strip that has not been constructed.
	Uninitialized State = iota
	// Ready means that the Strip has no transmission in flight.
	Ready
	// Transmitting means that a submitted frame has not finished transmitting.
	Transmitting
	// Closed means that the Strip has released its resources.
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Ready:
		return "Ready"
	case Transmitting:
		return "Transmitting"
	case Closed:
		return "Closed"
	default:
		return "State(?)"
	}
}

// Config is the configuration for a Strip.
type Config struct {
	// LEDCount is the number of LEDs on the strip. It must be positive.
	LEDCount int

	// Pin is the output pin that the strip's data line is attached to.
	Pin string

	// Rating selects the resources dedicated to the strip's channel.
	Rating Rating

	// Profile is the strip's LED family. If its Name is empty, WS2812B will be
	// used.
	Profile timing.Profile

	// Resolution is the channel tick rate. If zero, timing.TickRate will be
	// used.
	Resolution physic.Frequency

	// UpdateTimeout is the amount of time that Update will wait for the
	// previous transmission to complete. If zero, DefaultUpdateTimeout will be
	// used.
	UpdateTimeout time.Duration

	// Logger, if not nil, is the logger to use.
	Logger logging.L
}

func (cfg *Config) profile() timing.Profile {
	if cfg.Profile.Name == "" {
		return timing.WS2812B
	}
	return cfg.Profile
}

func (cfg *Config) resolution() physic.Frequency {
	if cfg.Resolution <= 0 {
		return timing.TickRate
	}
	return cfg.Resolution
}

func (cfg *Config) updateTimeout() time.Duration {
	if cfg.UpdateTimeout <= 0 {
		return DefaultUpdateTimeout
	}
	return cfg.UpdateTimeout
}

// Strip is a driver for a single addressable LED strip.
//
// A Strip exclusively owns its channel. It is intended to be used by a single
// goroutine, and is not safe for concurrent use.
type Strip struct {
	cfg     Config
	profile timing.Profile
	logger  logging.L
	mon     monitoring

	ch   *channel.Channel
	enc  *protocol.Encoder
	pool bufferpool.Pool

	buf        *pixel.Buffer
	brightness uint8
	closed     bool
}

// New opens a Strip on opener's line for cfg.Pin.
//
// If any resource cannot be acquired, every resource acquired so far is
// released and an error caused by ErrInitFailure is returned.
func New(opener channel.Opener, cfg Config) (*Strip, error) {
	if cfg.LEDCount <= 0 {
		return nil, errors.Wrapf(ErrInitFailure, "invalid LED count %d", cfg.LEDCount)
	}

	profile := cfg.profile()
	res := cfg.Rating.Resources()
	logger := logging.Must(cfg.Logger)

	line, err := opener.OpenLine(cfg.Pin, cfg.resolution())
	if err != nil {
		return nil, errors.Wrapf(ErrInitFailure, "opening line on pin %q: %s", cfg.Pin, err)
	}

	ch, err := channel.New(line, channel.Config{
		Pin:                cfg.Pin,
		Resolution:         cfg.resolution(),
		MemoryBlockSymbols: res.MemoryBlockSymbols,
		QueueDepth:         res.QueueDepth,
		Logger:             logger,
	})
	if err != nil {
		_ = line.Close()
		return nil, errors.Wrapf(ErrInitFailure, "creating channel: %s", err)
	}
	defer func() {
		// Release the channel if we failed to complete our creation.
		if ch != nil {
			_ = ch.Close()
		}
	}()

	enc, err := protocol.NewEncoder(profile, cfg.resolution())
	if err != nil {
		return nil, errors.Wrapf(ErrInitFailure, "creating %s encoder: %s", profile.Name, err)
	}

	if err := ch.Enable(); err != nil {
		return nil, errors.Wrapf(ErrInitFailure, "enabling channel: %s", err)
	}

	s := Strip{
		cfg:     cfg,
		profile: profile,
		logger:  logger,
		mon: monitoring{
			labels: prometheus.Labels{"pin": cfg.Pin},
		},
		ch:         ch,
		enc:        enc,
		pool:       bufferpool.Pool{Size: cfg.LEDCount * len(pixel.Raw{})},
		buf:        pixel.NewBuffer(profile.Order, cfg.LEDCount),
		brightness: MaxBrightness,
	}
	s.mon.opened(cfg.LEDCount, s.brightness)
	logger.Infof("Opened %d-LED %s strip on pin %q (rating %s).", cfg.LEDCount, profile.Name, cfg.Pin, cfg.Rating)

	ch = nil // Owned by s.
	return &s, nil
}

// Len returns the number of LEDs on the strip.
func (s *Strip) Len() int { return s.buf.Len() }

// Profile returns the strip's LED family profile.
func (s *Strip) Profile() timing.Profile { return s.profile }

// Brightness returns the current brightness level.
func (s *Strip) Brightness() uint8 { return s.brightness }

// SupportsBrightnessControl returns true if SetBrightness is supported.
func (s *Strip) SupportsBrightnessControl() bool { return s.profile.BrightnessControl }

// State returns the current state of the strip.
func (s *Strip) State() State {
	switch {
	case s.closed:
		return Closed
	case s.ch.Busy():
		return Transmitting
	default:
		return Ready
	}
}

// SetBrightness sets the brightness level, and immediately rescales every
// pixel in the buffer by it.
//
// Scaling is destructive: lowering the brightness and raising it again does
// not restore the original colors. Colors set afterwards are scaled by the
// new level.
func (s *Strip) SetBrightness(level uint8) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.profile.BrightnessControl {
		return errors.Wrapf(ErrNotSupported, "%s brightness control", s.profile.Name)
	}

	s.brightness = level
	s.buf.Scale(level)
	s.mon.brightness(level)
	s.logger.Debugf("Set brightness of strip on pin %q to %d.", s.cfg.Pin, level)
	return nil
}

// SetColor sets the LED at index to c, scaled by the current brightness.
//
// SetColor does not transmit; call Update to display the change.
func (s *Strip) SetColor(c pixel.P, index int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if index < 0 || index >= s.buf.Len() {
		return errors.Wrapf(ErrOutOfRange, "index %d (%d LEDs)", index, s.buf.Len())
	}

	s.buf.SetPixel(index, c.Scale(s.brightness))
	return nil
}

// SetColorRange sets count LEDs starting at start to c, scaled by the current
// brightness. A range ending exactly at the end of the strip is valid.
func (s *Strip) SetColorRange(c pixel.P, start, count int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if start < 0 || count < 0 || start+count > s.buf.Len() {
		return errors.Wrapf(ErrOutOfRange, "range [%d, %d) (%d LEDs)", start, start+count, s.buf.Len())
	}

	s.buf.Fill(start, count, c.Scale(s.brightness))
	return nil
}

// Clear sets every LED to black.
func (s *Strip) Clear() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.buf.Reset(s.buf.Len())
	return nil
}

// Pixel returns the buffered color of the LED at index, after brightness
// scaling.
func (s *Strip) Pixel(index int) (pixel.P, error) {
	if index < 0 || index >= s.buf.Len() {
		return pixel.P{}, errors.Wrapf(ErrOutOfRange, "index %d (%d LEDs)", index, s.buf.Len())
	}
	return s.buf.Pixel(index), nil
}

// Update waits for the previous transmission to complete, then submits the
// current buffer for transmission.
//
// Update returns once the frame has been accepted; it does not wait for the
// frame to finish transmitting. If the previous transmission does not complete
// within the update timeout, Update returns an error caused by ErrTimeout and
// submits nothing.
func (s *Strip) Update(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.waitPrevious(ctx); err != nil {
		return err
	}

	data := s.pool.Snapshot(s.buf.Bytes())
	s.logger.Debugf("Submitting frame on pin %q:\n%s", s.cfg.Pin, fmtutil.Hex(data.Bytes()))
	if err := s.ch.Transmit(ctx, s.enc, data); err != nil {
		return errors.Wrap(err, "submitting frame")
	}
	s.mon.update()
	return nil
}

// Wait blocks until any in-flight transmission has completed, subject to the
// update timeout.
func (s *Strip) Wait(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.waitPrevious(ctx)
}

// Close waits briefly for any in-flight transmission, then releases the
// strip's channel.
func (s *Strip) Close() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.waitPrevious(context.Background()); err != nil {
		s.logger.Warnf("Closing strip on pin %q without draining: %s", s.cfg.Pin, err)
	}

	s.closed = true
	s.mon.closed()
	if err := s.ch.Close(); err != nil {
		return errors.Wrap(err, "closing channel")
	}
	return nil
}

func (s *Strip) waitPrevious(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.updateTimeout())
	defer cancel()

	err := s.ch.WaitAllDone(wctx)
	switch {
	case err == nil:
		return nil

	case ctx.Err() != nil:
		return ctx.Err()

	case wctx.Err() != nil:
		s.mon.timeout()
		s.logger.Warnf("Transmission on pin %q did not complete within %s.", s.cfg.Pin, s.cfg.updateTimeout())
		return errors.Wrapf(ErrTimeout, "after %s", s.cfg.updateTimeout())

	default:
		// A previous frame failed. It has already been dropped, so there is nothing
		// left to wait for.
		s.mon.transmitFailure()
		s.logger.Warnf("Previous frame on pin %q failed to transmit: %s", s.cfg.Pin, err)
		return nil
	}
}

func (s *Strip) checkOpen() error {
	if s.closed {
		return errors.Wrap(ErrInvalidState, "strip is closed")
	}
	return nil
}
