// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package protocol

import (
	"time"

	"github.com/danjacques/goledstrip/timing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"periph.io/x/conn/v3/physic"
)

// encodeChunked encodes data through blocks of blockSize Symbols until
// completion, returning every Symbol emitted and the Status of each call.
func encodeChunked(e *Encoder, data []byte, blockSize int) ([]Symbol, []Status) {
	var (
		out      []Symbol
		statuses []Status
	)
	mem := make([]Symbol, blockSize)
	for {
		n, st := e.Encode(data, mem)
		out = append(out, mem[:n]...)
		statuses = append(statuses, st)
		if st == Complete {
			return out, statuses
		}
		if len(statuses) > 10000 {
			Fail("encoder did not complete")
		}
	}
}

var _ = Describe("Encoder", func() {
	var (
		bit0  = Symbol{Duration0: 3, Level0: true, Duration1: 9, Level1: false}
		bit1  = Symbol{Duration0: 9, Level0: true, Duration1: 3, Level1: false}
		reset = Symbol{Duration0: 250, Duration1: 250}
	)

	var e *Encoder
	BeforeEach(func() {
		var err error
		e, err = NewEncoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())
	})

	It("starts Idle", func() {
		Expect(e.State()).To(Equal(Idle))
	})

	It("builds WS2812B symbols at 10 MHz", func() {
		Expect(e.Bit(false)).To(Equal(bit0))
		Expect(e.Bit(true)).To(Equal(bit1))
		Expect(e.ResetSymbols()).To(Equal([]Symbol{reset}))
		Expect(e.FrameSymbols(3)).To(Equal(25))
	})

	It("encodes a byte MSB-first followed by a reset", func() {
		mem := make([]Symbol, 64)
		n, st := e.Encode([]byte{0xA5}, mem)
		Expect(st).To(Equal(Complete))
		Expect(mem[:n]).To(Equal([]Symbol{
			bit1, bit0, bit1, bit0, bit0, bit1, bit0, bit1,
			reset,
		}))
		Expect(e.State()).To(Equal(Idle))
	})

	It("encodes an empty frame as a bare reset", func() {
		mem := make([]Symbol, 4)
		n, st := e.Encode(nil, mem)
		Expect(st).To(Equal(Complete))
		Expect(mem[:n]).To(Equal([]Symbol{reset}))
	})

	It("reports MemoryFull and resumes where it left off", func() {
		mem := make([]Symbol, 4)
		data := []byte{0xF0}

		n, st := e.Encode(data, mem)
		Expect(n).To(Equal(4))
		Expect(st).To(Equal(MemoryFull))
		Expect(e.State()).To(Equal(Data))
		Expect(mem[:n]).To(Equal([]Symbol{bit1, bit1, bit1, bit1}))

		By("finishing the data without room for the reset")
		n, st = e.Encode(data, mem)
		Expect(n).To(Equal(4))
		Expect(st).To(Equal(Continue))
		Expect(e.State()).To(Equal(Reset))
		Expect(mem[:n]).To(Equal([]Symbol{bit0, bit0, bit0, bit0}))

		By("emitting the reset")
		n, st = e.Encode(data, mem)
		Expect(n).To(Equal(1))
		Expect(st).To(Equal(Complete))
		Expect(mem[0]).To(Equal(reset))
		Expect(e.State()).To(Equal(Idle))
	})

	It("completes in one call when data and reset fit exactly", func() {
		mem := make([]Symbol, 9)
		n, st := e.Encode([]byte{0x00}, mem)
		Expect(n).To(Equal(9))
		Expect(st).To(Equal(Complete))
	})

	It("emits identical symbols for every chunk size", func() {
		data := []byte{0x00, 0xFF, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE}
		whole, statuses := encodeChunked(e, data, 1024)
		Expect(statuses).To(Equal([]Status{Complete}))
		Expect(whole).To(HaveLen(e.FrameSymbols(len(data))))

		for size := 1; size <= 80; size++ {
			chunked, _ := encodeChunked(e, data, size)
			Expect(chunked).To(Equal(whole), "block size %d", size)
		}
	})

	It("restarts a frame after Reset", func() {
		mem := make([]Symbol, 4)
		_, st := e.Encode([]byte{0xFF, 0xFF}, mem)
		Expect(st).To(Equal(MemoryFull))

		e.Reset()
		Expect(e.State()).To(Equal(Idle))

		all, _ := encodeChunked(e, []byte{0x00}, 16)
		Expect(all).To(Equal([]Symbol{bit0, bit0, bit0, bit0, bit0, bit0, bit0, bit0, reset}))
	})

	It("encodes LSB-first profiles", func() {
		p := timing.WS2812B
		p.MSBFirst = false
		lsb, err := NewEncoder(p, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())

		all, _ := encodeChunked(lsb, []byte{0x01}, 16)
		Expect(all[0]).To(Equal(bit1))
		Expect(all[1:8]).To(Equal([]Symbol{bit0, bit0, bit0, bit0, bit0, bit0, bit0}))
	})

	It("splits a long reset across several symbols", func() {
		p := timing.WS2812B
		p.ResetMinimum = 10 * time.Millisecond
		long, err := NewEncoder(p, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())

		total := int64(0)
		for _, s := range long.ResetSymbols() {
			Expect(s.IsReset()).To(BeTrue())
			Expect(s.Duration0).To(BeNumerically("<=", MaxDuration))
			Expect(s.Duration1).To(BeNumerically("<=", MaxDuration))
			total += s.Ticks()
		}
		Expect(total).To(Equal(int64(100000)))
		Expect(long.ResetSymbols()).To(HaveLen(2))
	})

	Context("rejects profiles that are not representable", func() {
		It("when a duration rounds to zero ticks", func() {
			_, err := NewEncoder(timing.WS2812B, physic.MegaHertz)
			Expect(err).To(HaveOccurred())
		})

		It("when a duration overflows a symbol", func() {
			_, err := NewEncoder(timing.WS2812B, 100*physic.GigaHertz)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Decoder", func() {
	It("recovers the bytes of an encoded frame", func() {
		e, err := NewEncoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())
		d, err := NewDecoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())

		data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0xFF}
		symbols, _ := encodeChunked(e, data, 7)
		Expect(Latched(symbols)).To(BeTrue())

		decoded, err := d.Decode(symbols)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(Equal(data))
	})

	It("rejects a partial byte", func() {
		d, err := NewDecoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())

		_, err = d.Decode([]Symbol{{Duration0: 3, Level0: true, Duration1: 9}})
		Expect(err).To(HaveOccurred())
	})

	It("rejects an inverted symbol", func() {
		d, err := NewDecoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())

		_, err = d.Decode([]Symbol{{Duration0: 3, Duration1: 9, Level1: true}})
		Expect(err).To(HaveOccurred())
	})
})
