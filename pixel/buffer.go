// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

// pixelSize is the number of bytes that a single pixel occupies in a Buffer.
const pixelSize = len(Raw{})

// Buffer is a sequence of consecutive pixels stored in their wire format.
// It is used for minimal-copy pixel processing.
//
// Pixels are stored in Order. The logical value of a pixel is always exchanged
// as a P.
type Buffer struct {
	// Order is the channel order of the stored pixels.
	//
	// Adjusting this value will invalidate the current buffered data. The user
	// must call Reset afterwards.
	Order Order

	buf []byte
}

// NewBuffer returns a Buffer holding size black pixels stored in o.
func NewBuffer(o Order, size int) *Buffer {
	pb := Buffer{Order: o}
	pb.Reset(size)
	return &pb
}

// Len returns the number of pixels allocated in pb.
func (pb *Buffer) Len() int { return len(pb.buf) / pixelSize }

// Reset clears the buffer and allocates room for size pixels.
//
// If the underlying buffer is already >= this size, it will be reused;
// otherwise, a new buffer will be allocated.
func (pb *Buffer) Reset(size int) {
	bytesNeeded := size * pixelSize
	if cap(pb.buf) < bytesNeeded {
		pb.buf = make([]byte, bytesNeeded)
		return
	}

	pb.buf = pb.buf[:bytesNeeded]
	for i := range pb.buf {
		pb.buf[i] = 0
	}
}

// UseBytes loads buf directly into this Buffer. This creates a
// functional Buffer with no copying.
//
// buf may be retained and used by pb indefinitely, and should not be reused
// while pb is active. Any trailing partial pixel in buf is ignored.
func (pb *Buffer) UseBytes(buf []byte) { pb.buf = buf[:len(buf)-(len(buf)%pixelSize)] }

// Bytes returns the raw bytes for this buffer, in Order.
func (pb *Buffer) Bytes() []byte { return pb.buf }

// CloneFrom clones the state of other efficiently.
func (pb *Buffer) CloneFrom(other *Buffer) {
	pb.Order = other.Order
	if cap(pb.buf) < len(other.buf) {
		pb.buf = make([]byte, len(other.buf))
	} else {
		pb.buf = pb.buf[:len(other.buf)]
	}
	copy(pb.buf, other.buf)
}

// Raw returns the stored bytes of the pixel at index i.
//
// If i is out of bounds, Raw will return a zero value.
func (pb *Buffer) Raw(i int) (r Raw) {
	offset := i * pixelSize
	if offset < 0 || offset >= len(pb.buf) {
		return
	}
	copy(r[:], pb.buf[offset:])
	return
}

// Pixel returns the logical value of the pixel at index i.
//
// If i is out of bounds, Pixel will return a zero value.
func (pb *Buffer) Pixel(i int) P { return pb.Order.Decode(pb.Raw(i)) }

// SetPixel sets the pixel value at index i.
//
// If i is out of bounds, SetPixel will do nothing.
func (pb *Buffer) SetPixel(i int, p P) {
	offset := i * pixelSize
	if offset < 0 || offset >= len(pb.buf) {
		return
	}
	r := pb.Order.Encode(p)
	copy(pb.buf[offset:], r[:])
}

// Fill sets count pixels starting at start to p. Indices that fall outside of
// the buffer are ignored.
func (pb *Buffer) Fill(start, count int, p P) {
	if start < 0 {
		count += start
		start = 0
	}
	if end := pb.Len(); start+count > end {
		count = end - start
	}
	if count <= 0 {
		return
	}

	r := pb.Order.Encode(p)
	seg := pb.buf[start*pixelSize : (start+count)*pixelSize]
	for i := 0; i < len(seg); i += pixelSize {
		copy(seg[i:], r[:])
	}
}

// Scale scales every stored channel in the buffer by level/255, in place.
//
// Scaling is lossy: scaling down and then back up does not restore the
// original values.
func (pb *Buffer) Scale(level uint8) {
	if level == 0xFF {
		return
	}
	for i, v := range pb.buf {
		pb.buf[i] = scaleChannel(v, level)
	}
}
