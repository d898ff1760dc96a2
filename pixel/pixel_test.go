// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

import (
	"image/color"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pixel", func() {
	p := P{Red: 10, Green: 20, Blue: 30}

	It("generates a short string", func() {
		Expect(p.String()).Should(Equal("(10, 20, 30)"))
	})

	It("round-trips through color.Color", func() {
		Expect(FromColor(color.RGBA{R: 10, G: 20, B: 30, A: 0xFF})).To(Equal(p))
		Expect(FromColor(color.NRGBAModel.Convert(p))).To(Equal(p))
	})

	It("scales by brightness level", func() {
		Expect(White.Scale(0)).To(Equal(Black))
		Expect(p.Scale(0xFF)).To(Equal(p))
		Expect(P{Red: 200, Green: 100, Blue: 1}.Scale(128)).To(Equal(P{Red: 100, Green: 50, Blue: 0}))
	})
})

var _ = Describe("Order", func() {
	p := P{Red: 1, Green: 2, Blue: 3}

	DescribeTable("encodes channels in wire order",
		func(o Order, expected Raw) {
			Expect(o.Encode(p)).To(Equal(expected))
			Expect(o.Decode(expected)).To(Equal(p))
		},
		Entry("RGB", RGB, Raw{1, 2, 3}),
		Entry("RBG", RBG, Raw{1, 3, 2}),
		Entry("GBR", GBR, Raw{2, 3, 1}),
		Entry("GRB", GRB, Raw{2, 1, 3}),
		Entry("BGR", BGR, Raw{3, 2, 1}),
		Entry("BRG", BRG, Raw{3, 1, 2}),
	)

	It("converts RGB to GRB and back", func() {
		grb := Convert(Raw{0xAA, 0xBB, 0xCC}, RGB, GRB)
		Expect(grb).To(Equal(Raw{0xBB, 0xAA, 0xCC}))
		Expect(Convert(grb, GRB, RGB)).To(Equal(Raw{0xAA, 0xBB, 0xCC}))
	})

	It("provides a per-order palette", func() {
		pal := GRB.Palette()
		Expect(pal.Black).To(Equal(Raw{0, 0, 0}))
		Expect(pal.Red).To(Equal(Raw{0, 0xFF, 0}))
		Expect(pal.Green).To(Equal(Raw{0xFF, 0, 0}))
		Expect(pal.Blue).To(Equal(Raw{0, 0, 0xFF}))
		Expect(pal.White).To(Equal(Raw{0xFF, 0xFF, 0xFF}))
	})

	It("parses names case-insensitively", func() {
		o, err := ParseOrder("grb")
		Expect(err).ToNot(HaveOccurred())
		Expect(o).To(Equal(GRB))

		var text Order
		Expect(text.UnmarshalText([]byte("BRG"))).To(Succeed())
		Expect(text).To(Equal(BRG))
		Expect(text.String()).To(Equal("BRG"))
	})

	It("rejects unknown names", func() {
		_, err := ParseOrder("RGBW")
		Expect(err).To(HaveOccurred())
	})

	It("can be selected with a flag", func() {
		var of OrderFlag
		Expect(of.Set("bgr")).To(Succeed())
		Expect(of.Value()).To(Equal(BGR))
		Expect(of.String()).To(Equal("BGR"))
		Expect(of.Set("nope")).ToNot(Succeed())
		Expect(OrderFlagValues()).To(Equal("RGB, RBG, GBR, GRB, BGR, BRG"))
	})
})

func TestPixel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Test pixel")
}
