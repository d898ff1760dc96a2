// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package matrix presents an LED strip as a rectangular pixel matrix.
//
// The strip is assumed to be laid out row by row. A Matrix translates matrix
// coordinates into strip indices through its Layout, and displays each change
// as soon as it is drawn.
package matrix

import (
	"context"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/strip"
	"github.com/danjacques/goledstrip/support/logging"

	"github.com/pkg/errors"
)

// Display is a pixel matrix display.
type Display interface {
	// Init acquires the display's hardware and sizes it to res.
	Init(ctx context.Context, res Resolution) error
	// DrawPixel sets the pixel at p to c, and displays it.
	DrawPixel(ctx context.Context, p Point, c pixel.P) error
	// Clear sets every pixel to black, and displays the result.
	Clear(ctx context.Context) error
	// Resolution returns the display's resolution. It is zero before Init.
	Resolution() Resolution
	// SupportsBrightnessControl returns true if SetBrightness is supported.
	SupportsBrightnessControl() bool
	// SetBrightness sets the display's brightness level.
	SetBrightness(ctx context.Context, level uint8) error
	// Close releases the display's hardware.
	Close() error
}

// Config configures a Matrix.
type Config struct {
	// Strip is the configuration of the underlying strip. Its LEDCount is
	// derived from the resolution passed to Init.
	Strip strip.Config

	// Wiring is the physical layout of the strip.
	Wiring Wiring

	// Logger, if not nil, is the logger to use. If Strip.Logger is nil, the
	// strip will use it too.
	Logger logging.L
}

// Matrix is a Display backed by a single LED strip.
//
// Matrix is not safe for concurrent use.
type Matrix struct {
	cfg    Config
	opener channel.Opener
	logger logging.L

	strip  *strip.Strip
	res    Resolution
	layout Layout
}

var _ Display = (*Matrix)(nil)

// New returns an uninitialized Matrix that will open its strip through
// opener.
func New(opener channel.Opener, cfg Config) *Matrix {
	m := Matrix{
		cfg:    cfg,
		opener: opener,
		logger: logging.Must(cfg.Logger),
	}
	if m.cfg.Strip.Logger == nil {
		m.cfg.Strip.Logger = cfg.Logger
	}
	return &m
}

// Init implements Display.
//
// Init opens a strip with one LED per pixel of res and displays it black.
// Failure to acquire the strip returns an error caused by
// strip.ErrInitFailure.
func (m *Matrix) Init(ctx context.Context, res Resolution) error {
	if m.strip != nil {
		return errors.Wrap(strip.ErrInvalidState, "matrix is already initialized")
	}
	if !res.IsValid() {
		return errors.Wrapf(strip.ErrInitFailure, "invalid resolution %s", res)
	}

	cfg := m.cfg.Strip
	cfg.LEDCount = res.Count()
	s, err := strip.New(m.opener, cfg)
	if err != nil {
		return err
	}

	if err := s.Update(ctx); err != nil {
		_ = s.Close()
		return errors.Wrap(err, "displaying initial frame")
	}

	m.strip = s
	m.res = res
	m.layout = m.cfg.Wiring.Layout(res)
	m.logger.Infof("Initialized %s %s matrix.", res, m.cfg.Wiring)
	return nil
}

// DrawPixel implements Display.
func (m *Matrix) DrawPixel(ctx context.Context, p Point, c pixel.P) error {
	if err := m.checkInit(); err != nil {
		return err
	}
	if !m.res.Contains(p) {
		return errors.Wrapf(strip.ErrOutOfRange, "point %s (resolution %s)", p, m.res)
	}

	if err := m.strip.SetColor(c, m.layout.Index(p)); err != nil {
		return err
	}
	return m.strip.Update(ctx)
}

// Clear implements Display.
func (m *Matrix) Clear(ctx context.Context) error {
	if err := m.checkInit(); err != nil {
		return err
	}

	if err := m.strip.Clear(); err != nil {
		return err
	}
	return m.strip.Update(ctx)
}

// Resolution implements Display.
//
// Before Init, Resolution logs a usage error and returns a zero Resolution.
func (m *Matrix) Resolution() Resolution {
	if m.strip == nil {
		m.logger.Errorf("Matrix resolution requested before initialization.")
	}
	return m.res
}

// SupportsBrightnessControl implements Display.
func (m *Matrix) SupportsBrightnessControl() bool {
	if m.strip != nil {
		return m.strip.SupportsBrightnessControl()
	}

	p := m.cfg.Strip.Profile
	if p.Name == "" {
		return true
	}
	return p.BrightnessControl
}

// SetBrightness implements Display.
//
// The new level is applied to the whole matrix and displayed immediately.
func (m *Matrix) SetBrightness(ctx context.Context, level uint8) error {
	if err := m.checkInit(); err != nil {
		return err
	}

	if err := m.strip.SetBrightness(level); err != nil {
		return err
	}
	return m.strip.Update(ctx)
}

// Layout returns the matrix's Layout. It is nil before Init.
func (m *Matrix) Layout() Layout { return m.layout }

// Strip returns the matrix's underlying strip. It is nil before Init.
func (m *Matrix) Strip() *strip.Strip { return m.strip }

// Close implements Display.
func (m *Matrix) Close() error {
	if err := m.checkInit(); err != nil {
		return err
	}

	s := m.strip
	m.strip, m.res, m.layout = nil, Resolution{}, nil
	return s.Close()
}

func (m *Matrix) checkInit() error {
	if m.strip == nil {
		return errors.Wrap(strip.ErrInvalidState, "matrix is not initialized")
	}
	return nil
}
