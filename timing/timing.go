// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package timing describes the single-wire waveform timings of addressable
// LED families.
//
// Each family encodes a bit as a high pulse followed by a low pulse, with the
// ratio of the two distinguishing a 0 from a 1. A frame is latched by holding
// the line low for at least the family's reset time.
package timing

import (
	"sort"
	"strings"
	"time"

	"github.com/danjacques/goledstrip/pixel"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"periph.io/x/conn/v3/physic"
)

// TickRate is the resolution of the hardware channel clock: 10 MHz, or
// 100ns per tick.
const TickRate = 10 * physic.MegaHertz

// Profile is the immutable timing description of an LED family.
//
// A Profile is selected once, when a strip is configured.
type Profile struct {
	// Name is the family name of this profile.
	Name string

	// Bit0High and Bit0Low are the high and low durations of a 0 bit.
	Bit0High time.Duration
	Bit0Low  time.Duration
	// Bit1High and Bit1Low are the high and low durations of a 1 bit.
	Bit1High time.Duration
	Bit1Low  time.Duration

	// MSBFirst is true if each byte is transmitted most significant bit first.
	MSBFirst bool

	// ResetMinimum is the minimum low time that latches a frame.
	ResetMinimum time.Duration

	// Order is the channel order that the chip expects.
	Order pixel.Order

	// BrightnessControl is true if the strip driver may offer brightness
	// control for this family.
	BrightnessControl bool
}

// WS2812B is the WS2812B family profile.
var WS2812B = Profile{
	Name:              "WS2812B",
	Bit0High:          300 * time.Nanosecond,
	Bit0Low:           900 * time.Nanosecond,
	Bit1High:          900 * time.Nanosecond,
	Bit1Low:           300 * time.Nanosecond,
	MSBFirst:          true,
	ResetMinimum:      50 * time.Microsecond,
	Order:             pixel.GRB,
	BrightnessControl: true,
}

// WS2811 is the WS2811 family profile, in its 800 kHz mode.
var WS2811 = Profile{
	Name:              "WS2811",
	Bit0High:          500 * time.Nanosecond,
	Bit0Low:           2000 * time.Nanosecond,
	Bit1High:          1200 * time.Nanosecond,
	Bit1Low:           1300 * time.Nanosecond,
	MSBFirst:          true,
	ResetMinimum:      50 * time.Microsecond,
	Order:             pixel.RGB,
	BrightnessControl: true,
}

// SK6812 is the RGB SK6812 family profile.
var SK6812 = Profile{
	Name:              "SK6812",
	Bit0High:          300 * time.Nanosecond,
	Bit0Low:           900 * time.Nanosecond,
	Bit1High:          600 * time.Nanosecond,
	Bit1Low:           600 * time.Nanosecond,
	MSBFirst:          true,
	ResetMinimum:      80 * time.Microsecond,
	Order:             pixel.GRB,
	BrightnessControl: true,
}

var profiles = map[string]*Profile{
	strings.ToUpper(WS2812B.Name): &WS2812B,
	strings.ToUpper(WS2811.Name):  &WS2811,
	strings.ToUpper(SK6812.Name):  &SK6812,
}

// ByName returns the named Profile. Lookup is case-insensitive.
func ByName(name string) (Profile, error) {
	if p := profiles[strings.ToUpper(name)]; p != nil {
		return *p, nil
	}
	return Profile{}, errors.Errorf("unknown LED profile %q (known: %s)", name, Names())
}

// Names returns a comma-delimited list of known profile names.
func Names() string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// BitPeriod is the total duration of a single data bit.
func (p *Profile) BitPeriod() time.Duration { return p.Bit0High + p.Bit0Low }

// Validate checks that p describes a usable waveform.
func (p *Profile) Validate() error {
	switch {
	case p.Bit0High <= 0, p.Bit0Low <= 0, p.Bit1High <= 0, p.Bit1Low <= 0:
		return errors.Errorf("profile %q has a non-positive bit duration", p.Name)
	case p.Bit0High >= p.Bit1High:
		return errors.Errorf("profile %q 0-bit high time must be shorter than its 1-bit high time", p.Name)
	case p.ResetMinimum <= 0:
		return errors.Errorf("profile %q has a non-positive reset time", p.Name)
	case !p.Order.IsValid():
		return errors.Errorf("profile %q has an invalid color order", p.Name)
	}
	return nil
}

// TicksPerMicrosecond returns the number of whole ticks in one microsecond at
// the specified rate.
func TicksPerMicrosecond(rate physic.Frequency) int64 { return int64(rate / physic.MegaHertz) }

// Ticks converts d to a whole number of ticks at the specified rate. Partial
// ticks are truncated.
func Ticks(d time.Duration, rate physic.Frequency) int64 {
	return (int64(d) * TicksPerMicrosecond(rate)) / int64(time.Microsecond)
}

// ProfileFlag is a pflag.Value implementation that selects a Profile by name.
type ProfileFlag Profile

var _ pflag.Value = (*ProfileFlag)(nil)

func (pf *ProfileFlag) String() string { return pf.Name }

// Set implements pflag.Value.
func (pf *ProfileFlag) Set(v string) error {
	p, err := ByName(v)
	if err != nil {
		return err
	}
	*pf = ProfileFlag(p)
	return nil
}

// Type implements pflag.Value.
func (pf *ProfileFlag) Type() string { return "timing.Profile" }

// Profile returns the Profile held by this flag.
func (pf *ProfileFlag) Profile() Profile { return Profile(*pf) }
