// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package protostream reads and writes streams of size-prefixed protobuf
// messages.
package protostream

import (
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// ErrMessageTooLarge is returned by Encoder.Write when a message exceeds the
// Encoder's MaxMessageSize.
var ErrMessageTooLarge = errors.New("message too large")

// Encoder encodes a protobuf message stream to an io.Writer.
//
// Each message is preceded by its encoded size, as a varint. An Encoder will
// not write a message that a Decoder with the same MaxMessageSize would
// reject, so a stream it writes is always readable.
type Encoder struct {
	// MaxMessageSize is the largest message that will be written. If zero,
	// DefaultMaxMessageSize is used.
	MaxMessageSize int

	buf *proto.Buffer
}

// Write writes pb to w, returning the number of bytes written.
//
// If pb is larger than MaxMessageSize, nothing is written and
// ErrMessageTooLarge is returned.
func (e *Encoder) Write(w io.Writer, pb proto.Message) (int, error) {
	maxSize := e.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	size := proto.Size(pb)
	if size > maxSize {
		return 0, errors.Wrapf(ErrMessageTooLarge, "%d bytes exceeds maximum %d", size, maxSize)
	}

	if e.buf == nil {
		e.buf = proto.NewBuffer(nil)
	} else {
		e.buf.Reset()
	}

	if err := e.buf.EncodeVarint(uint64(size)); err != nil {
		return 0, err
	}
	if err := e.buf.Marshal(pb); err != nil {
		return 0, err
	}
	return w.Write(e.buf.Bytes())
}
