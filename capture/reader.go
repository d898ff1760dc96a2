// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"io"
	"os"
	"time"

	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/protostream"

	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// maxFrameSymbols bounds the Symbol count of a single frame. Larger counts are
// treated as corruption.
const maxFrameSymbols = 1 << 24

// maxTimestampSize bounds the encoded size of a frame's timestamp record.
const maxTimestampSize = 32

// Header describes a capture file.
type Header struct {
	// Version is the file format version.
	Version int
	// Compression is the compression applied to the file body.
	Compression Compression
	// TickRate is the tick rate of the Symbol durations.
	TickRate physic.Frequency
}

// Frame is a single captured frame.
type Frame struct {
	// Time is the time at which the frame was captured.
	Time time.Time
	// Symbols are the frame's Symbols, in transmission order.
	Symbols []protocol.Symbol
}

// Reader reads frames from a capture stream.
type Reader struct {
	header Header

	body   *bodyReader
	closer io.Closer
	dec    protostream.Decoder
	rec    symbolRecord
}

// Open opens the capture file at path for reading.
func Open(path string) (*Reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(fd)
	if err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "reading capture file %q", path)
	}
	r.closer = fd
	return r, nil
}

// NewReader reads a capture header from r and returns a Reader for the frames
// that follow it.
func NewReader(r io.Reader) (*Reader, error) {
	cr := Reader{
		body: newBodyReader(r),
		dec:  protostream.Decoder{MaxMessageSize: maxTimestampSize},
	}

	var hdr fileHeader
	if err := struc.Unpack(cr.body, &hdr); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	switch {
	case hdr.Magic != Magic:
		return nil, errors.Errorf("not a capture file (magic %#08x)", hdr.Magic)
	case hdr.Version != Version:
		return nil, errors.Errorf("unsupported capture version %d", hdr.Version)
	case hdr.TickRateHz == 0:
		return nil, errors.New("invalid zero tick rate")
	}

	cr.header = Header{
		Version:     int(hdr.Version),
		Compression: Compression(hdr.Compression),
		TickRate:    physic.Frequency(hdr.TickRateHz) * physic.Hertz,
	}
	if err := cr.body.beginCompression(cr.header.Compression); err != nil {
		return nil, errors.Wrap(err, "reading body")
	}
	return &cr, nil
}

// Header returns the capture file's header.
func (r *Reader) Header() Header { return r.header }

// Next reads the next frame. At the end of the stream, Next returns io.EOF.
//
// A stream that ends partway through a frame returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (*Frame, error) {
	var ts timestamp.Timestamp
	if _, err := r.dec.Read(r.body, &ts); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.Wrap(err, "reading frame timestamp")
	}

	var f Frame
	var err error
	if f.Time, err = ptypes.Timestamp(&ts); err != nil {
		return nil, errors.Wrap(err, "invalid frame timestamp")
	}

	var fh frameHeader
	if err := struc.Unpack(r.body, &fh); err != nil {
		return nil, unexpectedEOF(err, "reading frame header")
	}
	if fh.SymbolCount > maxFrameSymbols {
		return nil, errors.Errorf("frame symbol count %d exceeds maximum", fh.SymbolCount)
	}

	f.Symbols = make([]protocol.Symbol, fh.SymbolCount)
	for i := range f.Symbols {
		if err := struc.Unpack(r.body, &r.rec); err != nil {
			return nil, unexpectedEOF(err, "reading symbol")
		}
		f.Symbols[i] = r.rec.symbol()
	}
	return &f, nil
}

// Close closes the Reader. If the Reader was created with Open, its file is
// closed.
func (r *Reader) Close() error {
	r.body.Close()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func unexpectedEOF(err error, msg string) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrap(err, msg)
}
