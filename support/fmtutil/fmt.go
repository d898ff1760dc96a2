// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains lazy formatters for log and dump output.
package fmtutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex renders a byte slice as a multi-line hex dump.
//
// The dump is only built if the value is formatted, so Hex can be passed to
// a debug log call without cost when that level is disabled.
type Hex []byte

func (h Hex) String() string { return hex.Dump([]byte(h)) }

// HexSlice renders a byte slice as a Go-style byte array literal with hex
// elements, e.g. "[2]byte{0x0A, 0xFF}".
type HexSlice []byte

func (hs HexSlice) String() string {
	var sb strings.Builder
	sb.Grow((6 * len(hs)) + 16)
	fmt.Fprintf(&sb, "[%d]byte{", len(hs))
	for i, b := range hs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}
	sb.WriteByte('}')
	return sb.String()
}
