// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package protostream

import (
	"bytes"
	"io"

	"github.com/danjacques/goledstrip/support/dataio"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// The maximum varint size, in bytes. This is the total number of bytes needed
// to encode the largest uint64 using proto.EncodeVarint.
const maxVarintSizeU64 = 10

// DefaultMaxMessageSize is the largest message that a Decoder will read if its
// MaxMessageSize is zero.
const DefaultMaxMessageSize = 1024 * 1024

// Decoder is a reusable object which decodes a series of messages from a proto
// stream.
type Decoder struct {
	// MaxMessageSize is the largest message size prefix that will be accepted.
	// A larger prefix is treated as stream corruption. If zero,
	// DefaultMaxMessageSize is used.
	MaxMessageSize int

	buf     *proto.Buffer
	dataBuf bytes.Buffer

	sizeBuf [maxVarintSizeU64]byte
}

func (d *Decoder) bufferNextVarint(r dataio.Reader) ([]byte, error) {
	sizeBuf := d.sizeBuf[:0]
	for len(sizeBuf) < maxVarintSizeU64 {
		b, err := r.ReadByte()
		if err != nil {
			return sizeBuf, err
		}

		sizeBuf = append(sizeBuf, b)
		if (b & 0x80) == 0 {
			// Varint does not have continuation bit set.
			return sizeBuf, nil
		}
	}

	return sizeBuf, errors.New("size prefix is not a valid varint")
}

// Read reads the next message into pb, returning the number of bytes consumed.
//
// Read reads the size prefix byte-by-byte. Users should use a buffered Reader.
// If the stream is exhausted before a message begins, Read returns io.EOF.
func (d *Decoder) Read(r dataio.Reader, pb proto.Message) (int64, error) {
	if d.buf == nil {
		d.buf = proto.NewBuffer(nil)
	}

	// The "proto" package doesn't help with reading a varint from a stream;
	// instead, we read until the most significant bit is zero.
	sizeBuf, err := d.bufferNextVarint(r)
	count := int64(len(sizeBuf))
	if err != nil {
		if err == io.EOF && count > 0 {
			err = io.ErrUnexpectedEOF
		}
		return count, err
	}

	size, amt := proto.DecodeVarint(sizeBuf)
	if amt != len(sizeBuf) {
		panic("incompatible proto varint encoding")
	}

	maxSize := d.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	if size > uint64(maxSize) {
		return count, errors.Errorf("message size %d exceeds maximum %d", size, maxSize)
	}

	d.dataBuf.Reset()
	d.dataBuf.Grow(int(size))
	lr := io.LimitedReader{
		R: r,
		N: int64(size),
	}
	readCount, err := d.dataBuf.ReadFrom(&lr)
	count += readCount
	switch {
	case err != nil:
		return count, err
	case readCount != int64(size):
		return count, io.ErrUnexpectedEOF
	}

	d.buf.SetBuf(d.dataBuf.Bytes())
	return count, d.buf.Unmarshal(pb)
}
