// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package capture records the Symbol frames emitted on a channel Line to a
// file, and reads them back.
//
// A capture file begins with an uncompressed header. It is followed by a body,
// possibly compressed, holding a sequence of frames. Each frame is a
// size-prefixed timestamp message, a Symbol count, and the Symbols.
package capture

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/support/protostream"
	"github.com/danjacques/goledstrip/support/stagingdir"

	"github.com/golang/protobuf/ptypes"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Config configures a capture Writer.
type Config struct {
	// Compression is the compression to apply to the file body.
	Compression Compression

	// TickRate is the tick rate of the captured Symbols' durations.
	TickRate physic.Frequency

	// TempDir, if not empty, is the directory in which to stage capture files.
	// If empty, the system temporary directory will be used.
	TempDir string

	// NowFunc, if not nil, returns the current time. If nil, time.Now is used.
	NowFunc func() time.Time

	// Logger, if not nil, is used to log Writer events.
	Logger logging.L
}

func (cfg *Config) now() time.Time {
	if cfg.NowFunc != nil {
		return cfg.NowFunc()
	}
	return time.Now()
}

// Writer is a channel.Line that records every frame written to it.
//
// Writer is not safe for concurrent writes, but FrameCount may be called at
// any time.
type Writer struct {
	cfg Config

	body *bodyWriter
	enc  protostream.Encoder
	rec  symbolRecord

	// pending holds the Symbols of the frame being built.
	pending []protocol.Symbol

	// frames is the number of frames written. It must be accessed atomically.
	frames int64

	// If the Writer was created with Create, the staging directory and the
	// destination to commit to on Close.
	staging  *stagingdir.D
	destPath string
	closed   bool
}

var _ channel.Line = (*Writer)(nil)

const stagingFileName = "capture"

// Create creates a Writer that will write a capture file to path.
//
// The file is built in a staging directory, and moved to path when the Writer
// is closed. If no frames were written, nothing is written to path.
func (cfg *Config) Create(path string) (w *Writer, err error) {
	sd, err := stagingdir.New(cfg.TempDir, "goledstrip_capture")
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		if sd != nil {
			if destroyErr := sd.Destroy(); destroyErr != nil {
				logging.Must(cfg.Logger).Warnf("Failed to destroy staging directory: %s", destroyErr)
			}
		}
	}()

	fd, err := os.Create(sd.Path(stagingFileName))
	if err != nil {
		return nil, errors.Wrap(err, "creating staging file")
	}

	if w, err = cfg.NewWriter(fd); err != nil {
		return nil, err
	}

	if w.destPath, err = filepath.Abs(path); err != nil {
		_ = w.body.Close()
		return nil, errors.Wrapf(err, "resolving path %q", path)
	}
	w.staging, sd = sd, nil
	return w, nil
}

// NewWriter creates a Writer that writes a capture stream to wc.
//
// The Writer takes ownership of wc, and will close it when it is closed.
func (cfg *Config) NewWriter(wc io.WriteCloser) (*Writer, error) {
	if cfg.TickRate <= 0 {
		_ = wc.Close()
		return nil, errors.Errorf("invalid tick rate %s", cfg.TickRate)
	}

	w := Writer{
		cfg:  *cfg,
		body: newBodyWriter(wc),
		enc:  protostream.Encoder{MaxMessageSize: maxTimestampSize},
	}

	hdr := fileHeader{
		Magic:       Magic,
		Version:     Version,
		Compression: uint8(cfg.Compression),
		TickRateHz:  uint64(cfg.TickRate / physic.Hertz),
	}
	if err := struc.Pack(w.body, &hdr); err != nil {
		_ = w.body.Close()
		return nil, errors.Wrap(err, "writing header")
	}
	if err := w.body.beginCompression(cfg.Compression); err != nil {
		_ = w.body.Close()
		return nil, err
	}
	return &w, nil
}

// WriteBlock implements channel.Line.
func (w *Writer) WriteBlock(block []protocol.Symbol) error {
	if w.closed {
		return channel.ErrClosed
	}
	w.pending = append(w.pending, block...)
	return nil
}

// AbortFrame implements channel.Line. The pending frame is not recorded.
func (w *Writer) AbortFrame() { w.pending = w.pending[:0] }

// EndFrame implements channel.Line, writing the pending frame.
func (w *Writer) EndFrame() error {
	if w.closed {
		return channel.ErrClosed
	}
	defer func() {
		w.pending = w.pending[:0]
	}()

	ts, err := ptypes.TimestampProto(w.cfg.now())
	if err != nil {
		return errors.Wrap(err, "building timestamp")
	}
	if _, err := w.enc.Write(w.body, ts); err != nil {
		return errors.Wrap(err, "writing timestamp")
	}

	fh := frameHeader{SymbolCount: uint32(len(w.pending))}
	if err := struc.Pack(w.body, &fh); err != nil {
		return errors.Wrap(err, "writing frame header")
	}
	for _, s := range w.pending {
		w.rec.load(s)
		if err := struc.Pack(w.body, &w.rec); err != nil {
			return errors.Wrap(err, "writing symbol")
		}
	}

	atomic.AddInt64(&w.frames, 1)
	return nil
}

// FrameCount returns the number of frames that have been written.
func (w *Writer) FrameCount() int64 { return atomic.LoadInt64(&w.frames) }

// Close implements channel.Line.
//
// Any partially-written frame is discarded. If the Writer was created with
// Create and it wrote at least one frame, the capture file is moved into
// place.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.body.Close(); err != nil {
		if w.staging != nil {
			_ = w.staging.Destroy()
		}
		return errors.Wrap(err, "closing capture stream")
	}

	if w.staging == nil {
		return nil
	}

	if w.FrameCount() == 0 {
		logging.Must(w.cfg.Logger).Infof("No frames captured; discarding capture file.")
		return w.staging.Destroy()
	}

	if err := w.staging.CommitFile(stagingFileName, w.destPath); err != nil {
		_ = w.staging.Destroy()
		return errors.Wrap(err, "committing capture file")
	}
	logging.Must(w.cfg.Logger).Infof("Wrote %d frame(s) to capture file %q.", w.FrameCount(), w.destPath)
	return nil
}
