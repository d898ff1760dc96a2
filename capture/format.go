// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"bufio"
	"io"
	"strings"

	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/dataio"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Magic identifies a capture file. It is the little-endian encoding of
// "LEDC".
const Magic = uint32('L') | uint32('E')<<8 | uint32('D')<<16 | uint32('C')<<24

// Version is the current capture file format version.
const Version = 1

// Compression is the compression applied to the body of a capture file.
type Compression uint8

const (
	// CompressionNone is an uncompressed body.
	CompressionNone Compression = iota
	// CompressionSnappy is a snappy-framed body.
	CompressionSnappy
	// CompressionZstd is a zstd stream body.
	CompressionZstd
)

var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionSnappy: "snappy",
	CompressionZstd:   "zstd",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCompression parses a Compression from its name.
func ParseCompression(v string) (Compression, error) {
	for c, name := range compressionNames {
		if name == strings.ToLower(v) {
			return c, nil
		}
	}
	return 0, errors.Errorf("unknown compression type: %q", v)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) (err error) {
	*c, err = ParseCompression(string(text))
	return
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// fileHeader is the uncompressed header at the start of every capture file.
type fileHeader struct {
	Magic       uint32 `struc:",little"`
	Version     uint16 `struc:",little"`
	Compression uint8
	Pad         []byte `struc:"[1]pad"`
	// TickRateHz is the tick rate of every Symbol duration in the file.
	TickRateHz uint64 `struc:",little"`
}

// frameHeader precedes each frame's Symbols. It follows the frame's
// size-prefixed timestamp message.
type frameHeader struct {
	SymbolCount uint32 `struc:",little"`
}

// symbolRecord is the encoding of a single protocol.Symbol.
type symbolRecord struct {
	Duration0 uint16 `struc:",little"`
	Level0    uint8
	Duration1 uint16 `struc:",little"`
	Level1    uint8
}

func (sr *symbolRecord) load(s protocol.Symbol) {
	sr.Duration0, sr.Level0 = s.Duration0, levelByte(s.Level0)
	sr.Duration1, sr.Level1 = s.Duration1, levelByte(s.Level1)
}

func (sr *symbolRecord) symbol() protocol.Symbol {
	return protocol.Symbol{
		Duration0: sr.Duration0,
		Level0:    sr.Level0 != 0,
		Duration1: sr.Duration1,
		Level1:    sr.Level1 != 0,
	}
}

func levelByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// bodyWriter writes the (possibly compressed) body of a capture file.
type bodyWriter struct {
	dataio.Writer

	closer io.Closer
	bw     *bufio.Writer
	// comp, if not nil, is the compressor feeding bw. It is closed before bw is
	// flushed.
	comp io.WriteCloser
}

func newBodyWriter(base io.WriteCloser) *bodyWriter {
	w := bodyWriter{
		bw:     bufio.NewWriter(base),
		closer: base,
	}
	w.Writer = w.bw
	return &w
}

func (w *bodyWriter) beginCompression(comp Compression) error {
	switch comp {
	case CompressionNone:
		w.Writer = w.bw
		return nil

	case CompressionSnappy:
		w.comp = snappy.NewBufferedWriter(w.bw)

	case CompressionZstd:
		enc, err := zstd.NewWriter(w.bw, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return errors.Wrap(err, "creating zstd encoder")
		}
		w.comp = enc

	default:
		return errors.Errorf("unknown compression: %s", comp)
	}
	w.Writer = dataio.MakeWriter(w.comp)
	return nil
}

func (w *bodyWriter) Close() (err error) {
	// Always close our underlying base.
	defer func() {
		closeErr := w.closer.Close()
		if err == nil {
			err = closeErr
		}
	}()

	if w.comp != nil {
		if err = w.comp.Close(); err != nil {
			return
		}
	}
	err = w.bw.Flush()
	return
}

// bodyReader reads the (possibly compressed) body of a capture file.
type bodyReader struct {
	dataio.Reader

	br      *bufio.Reader
	release func()
}

func newBodyReader(base io.Reader) *bodyReader {
	r := bodyReader{
		br: bufio.NewReader(base),
	}
	r.Reader = r.br
	return &r
}

func (r *bodyReader) beginCompression(comp Compression) error {
	switch comp {
	case CompressionNone:
		r.Reader = r.br

	case CompressionSnappy:
		r.Reader = bufio.NewReader(snappy.NewReader(r.br))

	case CompressionZstd:
		dec, err := zstd.NewReader(r.br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return errors.Wrap(err, "creating zstd decoder")
		}
		r.Reader = bufio.NewReader(dec)
		r.release = dec.Close

	default:
		return errors.Errorf("unknown compression: %s", comp)
	}
	return nil
}

// Close releases any decompressor resources. It does not close the base.
func (r *bodyReader) Close() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}
