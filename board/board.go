// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package board describes the collaborators of an LED matrix board: its
// identity, display, network link and clock. System starts them in order.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/danjacques/goledstrip/matrix"
	"github.com/danjacques/goledstrip/support/logging"

	"github.com/pkg/errors"
)

// Identity identifies a board.
type Identity struct {
	Name         string `yaml:"name" toml:"name"`
	Version      string `yaml:"version" toml:"version"`
	Manufacturer string `yaml:"manufacturer" toml:"manufacturer"`
	SerialNumber string `yaml:"serial_number" toml:"serial_number"`
}

// TextClock is the Identity of the text clock board.
var TextClock = Identity{
	Name:         "TextClockBoard",
	Version:      "v1.0",
	Manufacturer: "Retroboyy Inc.",
	SerialNumber: "0001",
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %s (%s, #%s)", id.Name, id.Version, id.Manufacturer, id.SerialNumber)
}

// DefaultResolution is the display resolution that a System uses if none is
// configured.
var DefaultResolution = matrix.Resolution{X: 16, Y: 16}

// DefaultConnectTimeout is the amount of time that a System waits for its
// network to connect if no timeout is configured.
const DefaultConnectTimeout = 5 * time.Second

// System is a board's set of collaborators.
type System struct {
	// Identity is the board's identity.
	Identity Identity

	// Display is the board's display. It must not be nil.
	Display matrix.Display
	// Resolution is the resolution to initialize Display with. If zero,
	// DefaultResolution is used.
	Resolution matrix.Resolution

	// Network, if not nil, is connected during Start.
	Network Network
	// ConnectTimeout bounds the network connection attempt. If zero,
	// DefaultConnectTimeout is used.
	ConnectTimeout time.Duration

	// Clock, if not nil, is synchronized during Start, after the network has
	// been connected.
	Clock Clock

	// Logger, if not nil, is the logger to use.
	Logger logging.L

	displayUp bool
}

// Start brings up the board's collaborators in order.
//
// Failure to initialize the Display is fatal. Network and Clock failures are
// logged, and the board runs without them.
func (s *System) Start(ctx context.Context) error {
	logger := logging.Must(s.Logger)

	if s.Display == nil {
		return errors.New("no display")
	}

	res := s.Resolution
	if !res.IsValid() {
		res = DefaultResolution
	}
	if err := s.Display.Init(ctx, res); err != nil {
		return errors.Wrapf(err, "initializing %s display", res)
	}
	s.displayUp = true
	logger.Infof("Starting %s with a %s display.", s.Identity, res)

	if s.Network != nil {
		timeout := s.ConnectTimeout
		if timeout <= 0 {
			timeout = DefaultConnectTimeout
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Network.Connect(cctx)
		cancel()
		if err != nil {
			logger.Warnf("Network connection failed; continuing without it: %s", err)
		}
	}

	if s.Clock != nil {
		if err := s.Clock.Sync(ctx); err != nil {
			logger.Warnf("Clock synchronization failed: %s", err)
		}
	}

	return nil
}

// Close releases the board's collaborators. The Display is closed only if
// Start initialized it.
func (s *System) Close() error {
	var err error
	if s.Network != nil {
		err = s.Network.Close()
	}
	if s.displayUp {
		s.displayUp = false
		if derr := s.Display.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
