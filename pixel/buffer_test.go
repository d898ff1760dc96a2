// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pixel

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pixel Buffer", func() {
	// Two GRB pixels: (100, 110, 120), (150, 160, 170)
	rawGRB := []byte{110, 100, 120, 160, 150, 170}

	Context("a GRB Buffer", func() {
		var pb *Buffer
		BeforeEach(func() {
			pb = &Buffer{Order: GRB}
		})

		It("has length 0", func() {
			Expect(pb.Len()).To(Equal(0))
			Expect(pb.Bytes()).To(HaveLen(0))
		})

		It("will grow its buffer when reset", func() {
			pb.Reset(5)
			Expect(pb.Bytes()).To(HaveLen(15))
			for i := 0; i < pb.Len(); i++ {
				Expect(pb.Pixel(i)).To(Equal(Black))
			}
		})

		It("can load the data using UseBytes", func() {
			pb.UseBytes(rawGRB)

			Expect(pb.Len()).To(Equal(2))
			Expect(pb.Pixel(0)).To(Equal(P{Red: 100, Green: 110, Blue: 120}))
			Expect(pb.Pixel(1)).To(Equal(P{Red: 150, Green: 160, Blue: 170}))
			Expect(pb.Raw(1)).To(Equal(Raw{160, 150, 170}))
		})

		It("ignores a trailing partial pixel in UseBytes", func() {
			pb.UseBytes([]byte{1, 2, 3, 4})
			Expect(pb.Len()).To(Equal(1))
		})

		Context("with loaded data", func() {
			BeforeEach(func() {
				pb.Reset(4)
				pb.SetPixel(0, P{Red: 100, Green: 110, Blue: 120})
				pb.SetPixel(1, P{Red: 150, Green: 160, Blue: 170})
			})

			It("stores pixels in wire order", func() {
				Expect(pb.Bytes()[:6]).To(Equal(rawGRB))
			})

			It("returns zero for out-of-bounds pixels", func() {
				Expect(pb.Pixel(-1)).To(BeZero())
				Expect(pb.Pixel(4)).To(BeZero())
			})

			It("ignores out-of-bounds writes", func() {
				before := append([]byte(nil), pb.Bytes()...)
				pb.SetPixel(-1, White)
				pb.SetPixel(4, White)
				Expect(pb.Bytes()).To(Equal(before))
			})

			It("can fill a range of pixels", func() {
				pb.Fill(1, 2, Red)
				Expect(pb.Pixel(0)).To(Equal(P{Red: 100, Green: 110, Blue: 120}))
				Expect(pb.Pixel(1)).To(Equal(Red))
				Expect(pb.Pixel(2)).To(Equal(Red))
				Expect(pb.Pixel(3)).To(Equal(Black))
			})

			It("clips a fill that runs past the end", func() {
				pb.Fill(2, 10, Blue)
				Expect(pb.Pixel(2)).To(Equal(Blue))
				Expect(pb.Pixel(3)).To(Equal(Blue))
				Expect(pb.Len()).To(Equal(4))
			})

			It("scales every pixel in place", func() {
				pb.Scale(0x80)
				Expect(pb.Pixel(0)).To(Equal(P{Red: 50, Green: 55, Blue: 60}))
				Expect(pb.Pixel(1)).To(Equal(P{Red: 75, Green: 80, Blue: 85}))
			})

			It("leaves pixels alone when scaled by 0xFF", func() {
				pb.Scale(0xFF)
				Expect(pb.Pixel(1)).To(Equal(P{Red: 150, Green: 160, Blue: 170}))
			})

			It("goes black when scaled by 0", func() {
				pb.Scale(0)
				for i := 0; i < pb.Len(); i++ {
					Expect(pb.Pixel(i)).To(Equal(Black))
				}
			})

			It("can be cloned", func() {
				var other Buffer
				other.CloneFrom(pb)
				Expect(other.Order).To(Equal(GRB))
				Expect(other.Bytes()).To(Equal(pb.Bytes()))

				other.SetPixel(0, White)
				Expect(pb.Pixel(0)).ToNot(Equal(White))
			})
		})
	})
})
