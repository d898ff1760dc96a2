// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package colorphase defines the logic for the "colorphase" demo app.
//
// This app drives a color cycling animation down the length of the board's
// strip, fading in and out of intensity of various colors.
//
// This demonstrates how to set up a board, generate pixel state mutations,
// and push them to the strip one frame at a time.
package colorphase

import (
	"context"
	"time"

	"github.com/danjacques/goledstrip/app"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/strip"

	"github.com/spf13/pflag"
)

var (
	fps = pflag.Int("fps", 30, "FPS that colors will be cycled.")
)

// Main is the main entry point.
func Main() {
	app.Main(func(ctx context.Context, env *app.Env) error {
		return Run(ctx, env.Matrix.Strip(), *fps)
	})
}

// Run cycles colors down s at fps frames per second until ctx is cancelled.
func Run(ctx context.Context, s *strip.Strip, fps int) error {
	if fps <= 0 {
		fps = 1
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	var ph phaser
	for {
		if err := ph.step(ctx, s); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// phaser holds the unscaled colors of a strip, so that shifting them does not
// compound brightness scaling.
type phaser struct {
	c      cycler
	colors []pixel.P
}

// step shifts all pixels towards the end, feeds the next color in at the
// start, and displays the result.
func (ph *phaser) step(ctx context.Context, s *strip.Strip) error {
	if ph.colors == nil {
		ph.colors = make([]pixel.P, s.Len())
	}

	copy(ph.colors[1:], ph.colors)
	ph.colors[0] = ph.c.Next()
	for i, c := range ph.colors {
		if err := s.SetColor(c, i); err != nil {
			return err
		}
	}
	return s.Update(ctx)
}

// 101 110 011 100 010 001
const cyclerMask = uint(0x2E711)

type cycler struct {
	v    int
	mask uint
}

func (c *cycler) Next() (p pixel.P) {
	if c.mask == 0 {
		c.mask = cyclerMask
	}

	// Select our intensity. >0xFF fades downwards towards 0.
	v := c.v
	if v > 0xFF {
		v = 0x1FF - v
	}

	// Set masked colors.
	if c.mask&0x01 != 0 {
		p.Red = byte(v)
	}
	if c.mask&0x02 != 0 {
		p.Green = byte(v)
	}
	if c.mask&0x04 != 0 {
		p.Blue = byte(v)
	}

	// Cycle.
	c.v++
	if c.v > 0x1FF {
		c.v = 0
		c.mask >>= 3
	}
	return
}
