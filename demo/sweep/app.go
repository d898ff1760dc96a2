// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package sweep defines the logic for the "ledmatrix" test pattern app.
//
// The app lights each pixel of the display in turn, red, then green, then
// blue, and clears the display after each full pass. It is used to check a
// display's wiring and color order.
package sweep

import (
	"context"
	"time"

	"github.com/danjacques/goledstrip/app"
	"github.com/danjacques/goledstrip/matrix"
	"github.com/danjacques/goledstrip/pixel"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/pflag"
)

var (
	interval = pflag.Duration("interval", 50*time.Millisecond, "Time to hold each color on each pixel.")
	passes   = pflag.Int("passes", 0, "Number of sweeps to run. If 0, sweep until interrupted.")
	hues     = pflag.Int("hues", 0, "If >0, show this many evenly-spaced hues instead of red, green, and blue.")
)

// Main is the main entry point.
func Main() {
	app.Main(func(ctx context.Context, env *app.Env) error {
		colors := Colors
		if *hues > 0 {
			colors = HueColors(*hues)
		}
		return Run(ctx, env.Matrix, colors, *interval, *passes)
	})
}

// Colors is the default sequence of colors shown on each pixel.
var Colors = []pixel.P{pixel.Red, pixel.Green, pixel.Blue}

// HueColors returns n fully-saturated colors, evenly spaced around the hue
// wheel starting at red.
func HueColors(n int) []pixel.P {
	colors := make([]pixel.P, n)
	for i := range colors {
		r, g, b := colorful.Hsv(360*float64(i)/float64(n), 1, 1).RGB255()
		colors[i] = pixel.P{Red: r, Green: g, Blue: b}
	}
	return colors
}

// Run sweeps colors across d. If passes is 0, Run sweeps until ctx is
// cancelled.
func Run(ctx context.Context, d matrix.Display, colors []pixel.P, interval time.Duration, passes int) error {
	res := d.Resolution()
	for pass := 0; passes <= 0 || pass < passes; pass++ {
		for y := 0; y < res.Y; y++ {
			for x := 0; x < res.X; x++ {
				p := matrix.Point{X: x, Y: y}
				for _, c := range colors {
					if err := d.DrawPixel(ctx, p, c); err != nil {
						return err
					}
					if err := sleep(ctx, interval); err != nil {
						return err
					}
				}
			}
		}

		if err := d.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
