// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"strings"

	"github.com/spf13/pflag"
)

// CompressionFlag is a pflag.Value that selects a capture Compression.
type CompressionFlag Compression

var _ pflag.Value = (*CompressionFlag)(nil)

func (cf *CompressionFlag) String() string { return Compression(*cf).String() }

// Set implements pflag.Value.
func (cf *CompressionFlag) Set(v string) error { return (*Compression)(cf).UnmarshalText([]byte(v)) }

// Type implements pflag.Value.
func (cf *CompressionFlag) Type() string { return "capture.Compression" }

// Value returns the selected Compression.
func (cf CompressionFlag) Value() Compression { return Compression(cf) }

// CompressionFlagValues returns a comma-separated list of the valid
// CompressionFlag values.
func CompressionFlagValues() string {
	opts := make([]string, 0, len(compressionNames))
	for c := CompressionNone; c <= CompressionZstd; c++ {
		opts = append(opts, c.String())
	}
	return strings.Join(opts, ", ")
}
