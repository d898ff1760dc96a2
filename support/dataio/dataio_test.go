// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package dataio

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MakeReader", func() {
	It("passes through a Reader that can already read bytes", func() {
		br := bytes.NewReader(nil)
		Expect(MakeReader(br)).To(BeIdenticalTo(br))
	})

	It("reads single bytes from a plain io.Reader", func() {
		r := MakeReader(iotest.OneByteReader(bytes.NewReader([]byte{0x01, 0x02})))
		for _, want := range []byte{0x01, 0x02} {
			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(want))
		}
		_, err := r.ReadByte()
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = Describe("MakeWriter", func() {
	It("writes single bytes to a plain io.Writer", func() {
		var buf bytes.Buffer
		w := MakeWriter(struct{ io.Writer }{&buf})
		Expect(w.WriteByte(0x42)).To(Succeed())
		_, err := w.Write([]byte{0x43})
		Expect(err).ToNot(HaveOccurred())
		Expect(buf.Bytes()).To(Equal([]byte{0x42, 0x43}))
	})
})

func TestDataIO(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Test dataio")
}
