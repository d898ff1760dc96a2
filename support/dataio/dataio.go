// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package dataio adapts plain streams to the byte-oriented interfaces that
// varint framing needs.
package dataio

import (
	"io"
)

// Reader reads single bytes as well as byte slices.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Writer writes single bytes as well as byte slices.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// MakeReader returns r as a Reader, wrapping it if it has no ReadByte method.
func MakeReader(r io.Reader) Reader {
	if dr, ok := r.(Reader); ok {
		return dr
	}
	return byteReader{r}
}

// MakeWriter returns w as a Writer, wrapping it if it has no WriteByte method.
func MakeWriter(w io.Writer) Writer {
	if dw, ok := w.(Writer); ok {
		return dw
	}
	return byteWriter{w}
}

type byteReader struct {
	io.Reader
}

func (r byteReader) ReadByte() (byte, error) {
	var d [1]byte
	if _, err := io.ReadFull(r.Reader, d[:]); err != nil {
		return 0, err
	}
	return d[0], nil
}

type byteWriter struct {
	io.Writer
}

func (w byteWriter) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}
