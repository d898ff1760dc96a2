// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package app

import (
	"fmt"

	"github.com/danjacques/goledstrip/capture"
	"github.com/danjacques/goledstrip/config"
	"github.com/danjacques/goledstrip/strip"
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Flags are the command-line flags shared by the LED matrix commands. A flag
// that is set on the command line overrides the configuration file.
type Flags struct {
	ConfigPath string

	LogLevel    string
	Backend     string
	Pin         string
	Rating      strip.RatingFlag
	Profile     timing.ProfileFlag
	Width       int
	Height      int
	Brightness  uint8
	CapturePath string
	Compression capture.CompressionFlag
	HTTPAddr    string
	Preview     bool
}

// Register registers f's flags with fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	def := config.Default()
	f.Profile = timing.ProfileFlag(timing.WS2812B)
	f.Rating = strip.RatingFlag(def.Strip.Rating)
	f.Compression = capture.CompressionFlag(def.Capture.Compression)

	fs.StringVarP(&f.ConfigPath, "config", "c", "",
		"Path to a YAML or TOML configuration file. If empty, defaults are used.")
	fs.StringVar(&f.LogLevel, "log-level", def.Log.Level,
		"Logging level (panic, fatal, error, warn, info, debug, trace).")
	fs.StringVar(&f.Backend, "backend", def.Strip.Backend,
		fmt.Sprintf("Strip backend (%s, %s).", config.BackendSPI, config.BackendSim))
	fs.StringVar(&f.Pin, "pin", def.Strip.Pin,
		"Output pin that the strip's data line is attached to.")
	fs.Var(&f.Rating, "rating",
		fmt.Sprintf("Strip resource rating. Options are: %s", strip.RatingFlagValues()))
	fs.Var(&f.Profile, "profile",
		fmt.Sprintf("LED family timing profile. Options are: %s", timing.Names()))
	fs.IntVar(&f.Width, "width", def.Display.Width, "Display width, in pixels.")
	fs.IntVar(&f.Height, "height", def.Display.Height, "Display height, in pixels.")
	fs.Uint8Var(&f.Brightness, "brightness", def.Display.Brightness, "Display brightness (0-255).")
	fs.StringVar(&f.CapturePath, "capture", "",
		"If not empty, record transmitted frames to this capture file.")
	fs.Var(&f.Compression, "capture-compression",
		fmt.Sprintf("Capture file compression. Options are: %s", capture.CompressionFlagValues()))
	fs.StringVar(&f.HTTPAddr, "http-addr", "",
		"If not empty, serve metrics, health and the live preview on this address.")
	fs.BoolVar(&f.Preview, "preview", false,
		"Serve a live websocket preview of the display at /preview.")
}

// Config loads the configuration named by f, and applies the flags set in fs
// on top of it.
func (f *Flags) Config(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(f.ConfigPath); err != nil {
			return nil, err
		}
	}

	overrides := []struct {
		name  string
		apply func()
	}{
		{"log-level", func() { cfg.Log.Level = f.LogLevel }},
		{"backend", func() { cfg.Strip.Backend = f.Backend }},
		{"pin", func() { cfg.Strip.Pin = f.Pin }},
		{"rating", func() { cfg.Strip.Rating = f.Rating.Value() }},
		{"profile", func() { cfg.Strip.Profile = f.Profile.Profile().Name }},
		{"width", func() { cfg.Display.Width = f.Width }},
		{"height", func() { cfg.Display.Height = f.Height }},
		{"brightness", func() { cfg.Display.Brightness = f.Brightness }},
		{"capture", func() { cfg.Capture.Path = f.CapturePath }},
		{"capture-compression", func() { cfg.Capture.Compression = f.Compression.Value() }},
		{"http-addr", func() { cfg.HTTP.Addr = f.HTTPAddr }},
		{"preview", func() { cfg.HTTP.Preview = f.Preview }},
	}
	for _, o := range overrides {
		if fs.Changed(o.name) {
			o.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
