// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/fmtutil"
	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
)

// DumpOptions controls how Dump renders a capture.
type DumpOptions struct {
	// Profile is the LED family that the capture was recorded for.
	Profile timing.Profile
	// Hex, if true, renders each frame's decoded bytes instead of its pixels.
	Hex bool
	// Logger, if not nil, receives a warning for each undecodable frame.
	Logger logging.L
}

// DumpStats summarizes a Dump.
type DumpStats struct {
	Frames      int
	Undecodable int
}

// Dump reads every frame from r and writes a textual rendering of it to w.
//
// A frame that cannot be decoded is reported and skipped.
func Dump(w io.Writer, r *Reader, opts DumpOptions) (DumpStats, error) {
	var stats DumpStats
	logger := logging.Must(opts.Logger)

	dec, err := protocol.NewDecoder(opts.Profile, r.Header().TickRate)
	if err != nil {
		return stats, errors.Wrap(err, "creating decoder")
	}

	pb := pixel.Buffer{Order: opts.Profile.Order}
	for {
		f, err := r.Next()
		switch {
		case err == io.EOF:
			return stats, nil
		case err != nil:
			return stats, err
		}
		idx := stats.Frames
		stats.Frames++

		data, err := dec.Decode(f.Symbols)
		if err != nil {
			stats.Undecodable++
			logger.Warnf("Could not decode frame #%d: %s", idx, err)
			if _, err := fmt.Fprintf(w, "frame #%d @%s: undecodable\n", idx, f.Time.Format(time.RFC3339Nano)); err != nil {
				return stats, err
			}
			continue
		}

		pb.UseBytes(data)
		if _, err := fmt.Fprintf(w, "frame #%d @%s: %d pixel(s), latched=%v\n",
			idx, f.Time.Format(time.RFC3339Nano), pb.Len(), protocol.Latched(f.Symbols)); err != nil {
			return stats, err
		}

		if opts.Hex {
			if _, err := fmt.Fprintf(w, "  %s\n", fmtutil.HexSlice(data)); err != nil {
				return stats, err
			}
			continue
		}
		for i := 0; i < pb.Len(); i++ {
			if _, err := fmt.Fprintf(w, "  [%d] %s\n", i, pb.Pixel(i)); err != nil {
				return stats, err
			}
		}
	}
}
