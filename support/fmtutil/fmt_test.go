// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package fmtutil

import (
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HexSlice", func() {
	It("renders bytes as a hex array literal", func() {
		Expect(fmt.Sprint(HexSlice{0x0A, 0xFF})).To(Equal("[2]byte{0x0A, 0xFF}"))
		Expect(HexSlice(nil).String()).To(Equal("[0]byte{}"))
	})
})

var _ = Describe("Hex", func() {
	It("renders a hex dump", func() {
		Expect(Hex{0x41, 0x42}.String()).To(HavePrefix("00000000  41 42"))
	})
})

func TestFmtUtil(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Test fmtutil")
}
