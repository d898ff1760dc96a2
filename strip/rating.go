// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package strip

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Rating selects the hardware resources dedicated to a strip's channel.
type Rating int

const (
	// Default is the standard resource rating.
	Default Rating = iota
	// Performance dedicates a larger memory block and a deeper transmit queue.
	Performance
)

// Resources are the channel resources that a Rating resolves to.
type Resources struct {
	// MemoryBlockSymbols is the number of Symbols encoded per block.
	MemoryBlockSymbols int
	// QueueDepth is the number of transmissions that may be queued.
	QueueDepth int
}

var ratingResources = map[Rating]Resources{
	Default:     {MemoryBlockSymbols: 64, QueueDepth: 4},
	Performance: {MemoryBlockSymbols: 128, QueueDepth: 8},
}

var ratingNames = map[Rating]string{
	Default:     "default",
	Performance: "performance",
}

// Resources returns the channel resources for r. Unknown ratings resolve to
// the Default resources.
func (r Rating) Resources() Resources {
	if res, ok := ratingResources[r]; ok {
		return res
	}
	return ratingResources[Default]
}

func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRating parses a Rating from its name.
func ParseRating(v string) (Rating, error) {
	for r, name := range ratingNames {
		if strings.EqualFold(name, v) {
			return r, nil
		}
	}
	return Default, errors.Errorf("unknown rating: %q", v)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// RatingFlag is a pflag.Value implementation that stores a Rating.
type RatingFlag Rating

var _ pflag.Value = (*RatingFlag)(nil)

func (rf *RatingFlag) String() string { return Rating(*rf).String() }

// Set implements pflag.Value.
func (rf *RatingFlag) Set(v string) error { return (*Rating)(rf).UnmarshalText([]byte(v)) }

// Type implements pflag.Value.
func (rf *RatingFlag) Type() string { return "strip.Rating" }

// Value returns the Rating held by this flag.
func (rf RatingFlag) Value() Rating { return Rating(rf) }

// RatingFlagValues returns the list of possible values for a RatingFlag.
func RatingFlagValues() string { return strings.Join([]string{Default.String(), Performance.String()}, ", ") }
