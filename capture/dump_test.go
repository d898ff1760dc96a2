// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"bytes"
	"strings"
	"time"

	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/timing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dump", func() {
	var (
		capture bytes.Buffer
		out     bytes.Buffer
	)

	BeforeEach(func() {
		capture.Reset()
		out.Reset()

		epoch := time.Date(2018, 6, 1, 12, 0, 0, 0, time.UTC)
		cfg := Config{
			TickRate: timing.TickRate,
			NowFunc:  func() time.Time { return epoch },
		}
		w, err := cfg.NewWriter(nopWriteCloser{&capture})
		Expect(err).ToNot(HaveOccurred())

		enc, err := protocol.NewEncoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())
		data := []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x10}
		mem := make([]protocol.Symbol, enc.FrameSymbols(len(data)))
		n, st := enc.Encode(data, mem)
		Expect(st).To(Equal(protocol.Complete))
		Expect(w.WriteBlock(mem[:n])).To(Succeed())
		Expect(w.EndFrame()).To(Succeed())

		// A waveform that is not a data bit.
		Expect(w.WriteBlock([]protocol.Symbol{{Duration0: 3, Level0: false, Duration1: 9, Level1: true}})).To(Succeed())
		Expect(w.EndFrame()).To(Succeed())
		Expect(w.Close()).To(Succeed())
	})

	It("renders decoded pixels", func() {
		r, err := NewReader(bytes.NewReader(capture.Bytes()))
		Expect(err).ToNot(HaveOccurred())

		stats, err := Dump(&out, r, DumpOptions{Profile: timing.WS2812B})
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(DumpStats{Frames: 2, Undecodable: 1}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(Equal([]string{
			"frame #0 @2018-06-01T12:00:00Z: 2 pixel(s), latched=true",
			"  [0] (0, 255, 0)",
			"  [1] (0, 0, 16)",
			"frame #1 @2018-06-01T12:00:00Z: undecodable",
		}))
	})

	It("renders decoded bytes as hex", func() {
		r, err := NewReader(bytes.NewReader(capture.Bytes()))
		Expect(err).ToNot(HaveOccurred())

		_, err = Dump(&out, r, DumpOptions{Profile: timing.WS2812B, Hex: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("  [6]byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x10}\n"))
	})
})
