// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package config loads the configuration of an LED matrix board.
//
// A configuration file is YAML or TOML, selected by its extension. Any value
// that the file omits keeps its default.
package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/danjacques/goledstrip/board"
	"github.com/danjacques/goledstrip/capture"
	"github.com/danjacques/goledstrip/matrix"
	"github.com/danjacques/goledstrip/strip"
	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/timing"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	// BackendSPI drives the strip through a host SPI port.
	BackendSPI = "spi"
	// BackendSim drives a simulated strip.
	BackendSim = "sim"
)

// Duration is a time.Duration that is expressed in configuration files as a
// duration string, such as "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Display configures the matrix display.
type Display struct {
	Width      int           `yaml:"width" toml:"width"`
	Height     int           `yaml:"height" toml:"height"`
	Wiring     matrix.Wiring `yaml:"wiring" toml:"wiring"`
	Brightness uint8         `yaml:"brightness" toml:"brightness"`
}

// Resolution returns the display's resolution.
func (d *Display) Resolution() matrix.Resolution {
	return matrix.Resolution{X: d.Width, Y: d.Height}
}

// Strip configures the LED strip behind the display.
type Strip struct {
	// Backend is the name of the strip backend, BackendSPI or BackendSim.
	Backend       string       `yaml:"backend" toml:"backend"`
	Pin           string       `yaml:"pin" toml:"pin"`
	Rating        strip.Rating `yaml:"rating" toml:"rating"`
	Profile       string       `yaml:"profile" toml:"profile"`
	UpdateTimeout Duration     `yaml:"update_timeout" toml:"update_timeout"`
}

// Network configures the board's network link.
type Network struct {
	Enabled        bool     `yaml:"enabled" toml:"enabled"`
	Interface      string   `yaml:"interface" toml:"interface"`
	TargetAddress  string   `yaml:"target_address" toml:"target_address"`
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout"`
}

// Clock configures the board's clock. The clock is synchronized with Server
// when the network is enabled, and follows the host's clock otherwise.
type Clock struct {
	Server        string   `yaml:"server" toml:"server"`
	Retries       int      `yaml:"retries" toml:"retries"`
	RetryInterval Duration `yaml:"retry_interval" toml:"retry_interval"`
	// Timezone is an IANA time zone name, "UTC" or "Local".
	Timezone string `yaml:"timezone" toml:"timezone"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level" toml:"level"`
}

// Capture configures waveform capture. Capture is disabled if Path is empty.
type Capture struct {
	Path        string              `yaml:"path" toml:"path"`
	Compression capture.Compression `yaml:"compression" toml:"compression"`
}

// HTTP configures the HTTP server that serves metrics and the live preview.
// The server is disabled if Addr is empty.
type HTTP struct {
	Addr    string `yaml:"addr" toml:"addr"`
	Preview bool   `yaml:"preview" toml:"preview"`
}

// Config is a board configuration.
type Config struct {
	Board   board.Identity `yaml:"board" toml:"board"`
	Display Display        `yaml:"display" toml:"display"`
	Strip   Strip          `yaml:"strip" toml:"strip"`
	Network Network        `yaml:"network" toml:"network"`
	Clock   Clock          `yaml:"clock" toml:"clock"`
	Log     Log            `yaml:"log" toml:"log"`
	Capture Capture        `yaml:"capture" toml:"capture"`
	HTTP    HTTP           `yaml:"http" toml:"http"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Board: board.TextClock,
		Display: Display{
			Width:      board.DefaultResolution.X,
			Height:     board.DefaultResolution.Y,
			Wiring:     matrix.WiringSerpentine,
			Brightness: strip.MaxBrightness,
		},
		Strip: Strip{
			Backend:       BackendSPI,
			Pin:           "SPI0.0",
			Rating:        strip.Default,
			Profile:       timing.WS2812B.Name,
			UpdateTimeout: Duration(strip.DefaultUpdateTimeout),
		},
		Network: Network{
			ConnectTimeout: Duration(board.DefaultConnectTimeout),
		},
		Clock: Clock{
			Server:        board.DefaultNTPServer,
			Retries:       board.DefaultNTPRetries,
			RetryInterval: Duration(board.DefaultNTPRetryInterval),
			Timezone:      "Local",
		},
		Log: Log{
			Level: logrus.InfoLevel.String(),
		},
		Capture: Capture{
			Compression: capture.CompressionSnappy,
		},
	}
}

// Load loads the configuration file at path on top of the default
// configuration, and validates the result.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = cfg.decodeYAML(data)
	case ".toml":
		err = cfg.decodeTOML(data)
	default:
		err = errors.Errorf("unknown config file type %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	return cfg, nil
}

func (cfg *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (cfg *Config) decodeTOML(data []byte) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

// Validate returns an error if cfg is not a usable configuration.
func (cfg *Config) Validate() error {
	if res := cfg.Display.Resolution(); !res.IsValid() {
		return errors.Errorf("invalid display resolution %s", res)
	}

	switch cfg.Strip.Backend {
	case BackendSPI, BackendSim:
	default:
		return errors.Errorf("unknown strip backend %q", cfg.Strip.Backend)
	}
	if cfg.Strip.Pin == "" {
		return errors.New("a strip pin is required")
	}
	if _, err := cfg.StripProfile(); err != nil {
		return err
	}
	if _, err := cfg.LogLevel(); err != nil {
		return err
	}
	if cfg.Clock.Retries <= 0 {
		return errors.Errorf("clock retries must be positive, not %d", cfg.Clock.Retries)
	}
	if _, err := cfg.ClockLocation(); err != nil {
		return err
	}
	return nil
}

// ClockLocation returns the clock's configured time zone.
func (cfg *Config) ClockLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Clock.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid clock timezone %q", cfg.Clock.Timezone)
	}
	return loc, nil
}

// NewClock builds the board's clock. It is an NTP-synchronized clock if the
// network is enabled, and the host's clock otherwise.
func (cfg *Config) NewClock(logger logging.L) (board.Clock, error) {
	loc, err := cfg.ClockLocation()
	if err != nil {
		return nil, err
	}

	if !cfg.Network.Enabled {
		return &board.LocalClock{Location: loc}, nil
	}
	return &board.NTPClock{
		Server:        cfg.Clock.Server,
		Retries:       cfg.Clock.Retries,
		RetryInterval: time.Duration(cfg.Clock.RetryInterval),
		Location:      loc,
		Logger:        logger,
	}, nil
}

// StripProfile returns the timing profile named by the strip configuration.
func (cfg *Config) StripProfile() (timing.Profile, error) {
	return timing.ByName(cfg.Strip.Profile)
}

// LogLevel returns the configured logging level.
func (cfg *Config) LogLevel() (logrus.Level, error) {
	return logrus.ParseLevel(cfg.Log.Level)
}

// StripConfig builds the strip configuration for the display. Its LEDCount is
// left for the display to fill in.
func (cfg *Config) StripConfig() (strip.Config, error) {
	profile, err := cfg.StripProfile()
	if err != nil {
		return strip.Config{}, err
	}

	return strip.Config{
		Pin:           cfg.Strip.Pin,
		Rating:        cfg.Strip.Rating,
		Profile:       profile,
		Resolution:    timing.TickRate,
		UpdateTimeout: time.Duration(cfg.Strip.UpdateTimeout),
	}, nil
}
