// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package strip

import (
	"context"
	"testing"
	"time"

	"github.com/danjacques/goledstrip/channel/sim"
	"github.com/danjacques/goledstrip/pixel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/timing"

	. "github.com/onsi/ginkgo"
	gm "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

const testPin = "GPIO23"

// wireBytes decodes the most recent frame written to line.
func wireBytes(line *sim.Line) []byte {
	d, err := protocol.NewDecoder(timing.WS2812B, timing.TickRate)
	gm.Expect(err).ToNot(gm.HaveOccurred())

	frame := line.LastFrame()
	gm.Expect(protocol.Latched(frame)).To(gm.BeTrue())
	data, err := d.Decode(frame)
	gm.Expect(err).ToNot(gm.HaveOccurred())
	return data
}

var _ = Describe("Rating", func() {
	It("resolves to hardware resources", func() {
		gm.Expect(Default.Resources()).To(gm.Equal(Resources{MemoryBlockSymbols: 64, QueueDepth: 4}))
		gm.Expect(Performance.Resources()).To(gm.Equal(Resources{MemoryBlockSymbols: 128, QueueDepth: 8}))
	})

	It("always resolves to usable resources", func() {
		for _, r := range []Rating{Default, Performance, Rating(42)} {
			res := r.Resources()
			gm.Expect(res.MemoryBlockSymbols).To(gm.BeNumerically(">=", 1))
			gm.Expect(res.QueueDepth).To(gm.BeNumerically(">=", 1))
		}
	})

	It("can be parsed as a flag", func() {
		var rf RatingFlag
		gm.Expect(rf.Set("Performance")).To(gm.Succeed())
		gm.Expect(rf.Value()).To(gm.Equal(Performance))
		gm.Expect(rf.String()).To(gm.Equal("performance"))
		gm.Expect(rf.Set("turbo")).ToNot(gm.Succeed())
		gm.Expect(RatingFlagValues()).To(gm.Equal("default, performance"))
	})
})

var _ = Describe("Strip", func() {
	var (
		ctx    context.Context
		opener *sim.Opener
		cfg    Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		opener = &sim.Opener{}
		cfg = Config{
			LEDCount: 8,
			Pin:      testPin,
		}
	})

	Context("initialization", func() {
		It("fails without any LEDs", func() {
			cfg.LEDCount = 0
			_, err := New(opener, cfg)
			gm.Expect(errors.Cause(err)).To(gm.Equal(ErrInitFailure))
		})

		It("fails when the line cannot be opened", func() {
			opener.Err = errors.New("no such pin")
			_, err := New(opener, cfg)
			gm.Expect(errors.Cause(err)).To(gm.Equal(ErrInitFailure))
			gm.Expect(err).To(gm.MatchError(gm.ContainSubstring("no such pin")))
		})

		It("releases the line when the encoder cannot be built", func() {
			cfg.Resolution = physic.MegaHertz
			_, err := New(opener, cfg)
			gm.Expect(Is(err, ErrInitFailure)).To(gm.BeTrue())
			gm.Expect(opener.Line(testPin).Closed()).To(gm.BeTrue())

			By("allowing the pin to be opened again")
			cfg.Resolution = 0
			s, err := New(opener, cfg)
			gm.Expect(err).ToNot(gm.HaveOccurred())
			gm.Expect(s.Close()).To(gm.Succeed())
		})
	})

	Context("an open Strip", func() {
		var (
			s    *Strip
			line *sim.Line
		)

		BeforeEach(func() {
			var err error
			s, err = New(opener, cfg)
			gm.Expect(err).ToNot(gm.HaveOccurred())
			line = opener.Line(testPin)
		})

		AfterEach(func() {
			line.Release()
			if s.State() != Closed {
				gm.Expect(s.Close()).To(gm.Succeed())
			}
		})

		It("starts black, at full brightness, and Ready", func() {
			gm.Expect(s.Len()).To(gm.Equal(8))
			gm.Expect(s.Brightness()).To(gm.Equal(uint8(MaxBrightness)))
			gm.Expect(s.State()).To(gm.Equal(Ready))
			gm.Expect(s.Profile().Name).To(gm.Equal("WS2812B"))
			for i := 0; i < s.Len(); i++ {
				gm.Expect(s.Pixel(i)).To(gm.Equal(pixel.Black))
			}
		})

		It("rejects out-of-range indices", func() {
			gm.Expect(errors.Cause(s.SetColor(pixel.Red, 8))).To(gm.Equal(ErrOutOfRange))
			gm.Expect(errors.Cause(s.SetColor(pixel.Red, -1))).To(gm.Equal(ErrOutOfRange))
			_, err := s.Pixel(8)
			gm.Expect(errors.Cause(err)).To(gm.Equal(ErrOutOfRange))
		})

		It("accepts a range that ends at the last LED", func() {
			gm.Expect(s.SetColorRange(pixel.Blue, 5, 3)).To(gm.Succeed())
			gm.Expect(s.Pixel(4)).To(gm.Equal(pixel.Black))
			gm.Expect(s.Pixel(5)).To(gm.Equal(pixel.Blue))
			gm.Expect(s.Pixel(7)).To(gm.Equal(pixel.Blue))
		})

		It("rejects a range that runs past the last LED", func() {
			gm.Expect(errors.Cause(s.SetColorRange(pixel.Blue, 5, 4))).To(gm.Equal(ErrOutOfRange))
			gm.Expect(errors.Cause(s.SetColorRange(pixel.Blue, -1, 2))).To(gm.Equal(ErrOutOfRange))
			gm.Expect(s.Pixel(5)).To(gm.Equal(pixel.Black))
		})

		It("transmits colors in the chip's channel order", func() {
			gm.Expect(s.SetColor(pixel.P{Red: 10, Green: 20, Blue: 30}, 0)).To(gm.Succeed())
			gm.Expect(s.Update(ctx)).To(gm.Succeed())
			gm.Expect(s.Wait(ctx)).To(gm.Succeed())

			data := wireBytes(line)
			gm.Expect(data).To(gm.HaveLen(24))
			gm.Expect(data[:3]).To(gm.Equal([]byte{20, 10, 30}))
		})

		It("clears every LED to black regardless of brightness", func() {
			gm.Expect(s.SetColorRange(pixel.White, 0, 8)).To(gm.Succeed())
			gm.Expect(s.SetBrightness(100)).To(gm.Succeed())
			gm.Expect(s.Clear()).To(gm.Succeed())
			for i := 0; i < s.Len(); i++ {
				gm.Expect(s.Pixel(i)).To(gm.Equal(pixel.Black))
			}
		})

		It("transmits black at brightness 0", func() {
			gm.Expect(s.SetBrightness(0)).To(gm.Succeed())
			gm.Expect(s.SetColorRange(pixel.White, 0, 8)).To(gm.Succeed())
			gm.Expect(s.Update(ctx)).To(gm.Succeed())
			gm.Expect(s.Wait(ctx)).To(gm.Succeed())

			gm.Expect(wireBytes(line)).To(gm.Equal(make([]byte, 24)))
		})

		It("leaves colors unchanged at brightness 255", func() {
			c := pixel.P{Red: 1, Green: 128, Blue: 254}
			gm.Expect(s.SetBrightness(255)).To(gm.Succeed())
			gm.Expect(s.SetColor(c, 3)).To(gm.Succeed())
			gm.Expect(s.Pixel(3)).To(gm.Equal(c))
		})

		It("scales the buffer destructively", func() {
			gm.Expect(s.SetColor(pixel.P{Red: 200}, 0)).To(gm.Succeed())
			gm.Expect(s.SetBrightness(128)).To(gm.Succeed())
			gm.Expect(s.Pixel(0)).To(gm.Equal(pixel.P{Red: 100}))

			gm.Expect(s.SetBrightness(255)).To(gm.Succeed())
			gm.Expect(s.Pixel(0)).To(gm.Equal(pixel.P{Red: 100}))
		})

		It("scales only the new color on SetColor", func() {
			gm.Expect(s.SetBrightness(128)).To(gm.Succeed())
			gm.Expect(s.SetColor(pixel.White, 0)).To(gm.Succeed())
			gm.Expect(s.SetColor(pixel.White, 1)).To(gm.Succeed())

			gm.Expect(s.Pixel(0)).To(gm.Equal(pixel.P{Red: 128, Green: 128, Blue: 128}))
			gm.Expect(s.Pixel(1)).To(gm.Equal(pixel.P{Red: 128, Green: 128, Blue: 128}))
		})

		It("does not time out on consecutive updates", func() {
			for i := 0; i < 10; i++ {
				gm.Expect(s.SetColor(pixel.Green, i%s.Len())).To(gm.Succeed())
				gm.Expect(s.Update(ctx)).To(gm.Succeed())
			}
			gm.Expect(s.Wait(ctx)).To(gm.Succeed())
			gm.Expect(line.FrameCount()).To(gm.Equal(10))
		})

		It("recovers after a failed transmission", func() {
			line.FailWith(errors.New("line fault"))
			gm.Expect(s.Update(ctx)).To(gm.Succeed())

			gm.Eventually(s.State).Should(gm.Equal(Ready))
			line.FailWith(nil)
			gm.Expect(s.Update(ctx)).To(gm.Succeed())
			gm.Expect(s.Wait(ctx)).To(gm.Succeed())
			gm.Expect(line.FrameCount()).To(gm.Equal(1))
		})

		Context("with a stalled line", func() {
			BeforeEach(func() {
				s.cfg.UpdateTimeout = 20 * time.Millisecond
				line.Hold()

				gm.Expect(s.SetColor(pixel.Red, 0)).To(gm.Succeed())
				gm.Expect(s.Update(ctx)).To(gm.Succeed())
				gm.Eventually(line.Holding).Should(gm.Equal(1))
			})

			It("reports Transmitting, then times out", func() {
				gm.Expect(s.State()).To(gm.Equal(Transmitting))
				gm.Expect(errors.Cause(s.Update(ctx))).To(gm.Equal(ErrTimeout))

				line.Release()
				gm.Expect(s.Update(ctx)).To(gm.Succeed())
				gm.Expect(s.Wait(ctx)).To(gm.Succeed())
				gm.Expect(s.State()).To(gm.Equal(Ready))
			})

			It("transmits the buffer as it was when submitted", func() {
				gm.Expect(s.SetColor(pixel.Blue, 0)).To(gm.Succeed())
				line.Release()
				gm.Expect(s.Wait(ctx)).To(gm.Succeed())

				gm.Expect(wireBytes(line)[:3]).To(gm.Equal([]byte{0x00, 0xFF, 0x00}))
			})
		})

		It("refuses operations once closed", func() {
			gm.Expect(s.Close()).To(gm.Succeed())
			gm.Expect(line.Closed()).To(gm.BeTrue())
			gm.Expect(s.State()).To(gm.Equal(Closed))

			gm.Expect(errors.Cause(s.SetColor(pixel.Red, 0))).To(gm.Equal(ErrInvalidState))
			gm.Expect(errors.Cause(s.Update(ctx))).To(gm.Equal(ErrInvalidState))
			gm.Expect(errors.Cause(s.Close())).To(gm.Equal(ErrInvalidState))
		})
	})

	It("does not support brightness control for families without it", func() {
		cfg.Profile = timing.WS2812B
		cfg.Profile.BrightnessControl = false
		s, err := New(opener, cfg)
		gm.Expect(err).ToNot(gm.HaveOccurred())
		defer s.Close()

		gm.Expect(s.SupportsBrightnessControl()).To(gm.BeFalse())
		gm.Expect(errors.Cause(s.SetBrightness(10))).To(gm.Equal(ErrNotSupported))
	})
})

func TestStrip(t *testing.T) {
	gm.RegisterFailHandler(Fail)
	RunSpecs(t, "Strip Tests")
}
