// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package capture

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/protocol"
	"github.com/danjacques/goledstrip/support/bufferpool"
	"github.com/danjacques/goledstrip/timing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

var _ = Describe("Capture", func() {
	var (
		epoch time.Time
		now   time.Time
		cfg   Config
	)

	BeforeEach(func() {
		epoch = time.Date(2018, 6, 1, 12, 0, 0, 0, time.UTC)
		now = epoch
		cfg = Config{
			TickRate: timing.TickRate,
			NowFunc: func() time.Time {
				v := now
				now = now.Add(time.Second)
				return v
			},
		}
	})

	encodeFrame := func(data []byte) []protocol.Symbol {
		enc, err := protocol.NewEncoder(timing.WS2812B, timing.TickRate)
		Expect(err).ToNot(HaveOccurred())
		mem := make([]protocol.Symbol, enc.FrameSymbols(len(data)))
		n, st := enc.Encode(data, mem)
		Expect(st).To(Equal(protocol.Complete))
		return mem[:n]
	}

	for _, comp := range []Compression{CompressionNone, CompressionSnappy, CompressionZstd} {
		comp := comp

		It(comp.String()+" round-trips frames written in blocks", func() {
			cfg.Compression = comp

			var buf bytes.Buffer
			w, err := cfg.NewWriter(nopWriteCloser{&buf})
			Expect(err).ToNot(HaveOccurred())

			frames := [][]protocol.Symbol{
				encodeFrame([]byte{0xFF, 0x00, 0xA5}),
				encodeFrame(nil),
				encodeFrame([]byte{0x01}),
			}
			for _, f := range frames {
				// Split each frame across two blocks.
				half := len(f) / 2
				Expect(w.WriteBlock(f[:half])).To(Succeed())
				Expect(w.WriteBlock(f[half:])).To(Succeed())
				Expect(w.EndFrame()).To(Succeed())
			}
			Expect(w.FrameCount()).To(Equal(int64(len(frames))))
			Expect(w.Close()).To(Succeed())

			r, err := NewReader(bytes.NewReader(buf.Bytes()))
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Header()).To(Equal(Header{
				Version:     Version,
				Compression: comp,
				TickRate:    timing.TickRate,
			}))

			for i, f := range frames {
				fr, err := r.Next()
				Expect(err).ToNot(HaveOccurred())
				Expect(fr.Time.Equal(epoch.Add(time.Duration(i) * time.Second))).To(BeTrue())
				Expect(fr.Symbols).To(Equal(f))
			}
			_, err = r.Next()
			Expect(err).To(Equal(io.EOF))
			Expect(r.Close()).To(Succeed())
		})
	}

	It("selects a compression by flag", func() {
		var cf CompressionFlag
		Expect(cf.Set("ZSTD")).To(Succeed())
		Expect(cf.Value()).To(Equal(CompressionZstd))
		Expect(cf.String()).To(Equal("zstd"))
		Expect(cf.Set("gzip")).ToNot(Succeed())
		Expect(CompressionFlagValues()).To(Equal("none, snappy, zstd"))
	})

	It("rejects streams that are not capture files", func() {
		_, err := NewReader(bytes.NewReader(make([]byte, 32)))
		Expect(err).To(HaveOccurred())

		_, err = NewReader(bytes.NewReader(nil))
		Expect(err).To(HaveOccurred())
	})

	It("reports a truncated frame", func() {
		var buf bytes.Buffer
		w, err := cfg.NewWriter(nopWriteCloser{&buf})
		Expect(err).ToNot(HaveOccurred())
		Expect(w.WriteBlock(encodeFrame([]byte{0x42}))).To(Succeed())
		Expect(w.EndFrame()).To(Succeed())
		Expect(w.Close()).To(Succeed())

		r, err := NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-2]))
		Expect(err).ToNot(HaveOccurred())
		_, err = r.Next()
		Expect(err).To(HaveOccurred())
		Expect(err).ToNot(Equal(io.EOF))
	})

	It("omits an aborted frame", func() {
		var buf bytes.Buffer
		w, err := cfg.NewWriter(nopWriteCloser{&buf})
		Expect(err).ToNot(HaveOccurred())

		Expect(w.WriteBlock(encodeFrame([]byte{0xFF, 0xFF})[:4])).To(Succeed())
		w.AbortFrame()
		Expect(w.WriteBlock(encodeFrame([]byte{0x01}))).To(Succeed())
		Expect(w.EndFrame()).To(Succeed())
		Expect(w.FrameCount()).To(Equal(int64(1)))
		Expect(w.Close()).To(Succeed())

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		Expect(err).ToNot(HaveOccurred())
		fr, err := r.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(fr.Symbols).To(Equal(encodeFrame([]byte{0x01})))
		_, err = r.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("refuses writes after Close", func() {
		var buf bytes.Buffer
		w, err := cfg.NewWriter(nopWriteCloser{&buf})
		Expect(err).ToNot(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		Expect(w.WriteBlock(nil)).To(Equal(channel.ErrClosed))
		Expect(w.EndFrame()).To(Equal(channel.ErrClosed))
		Expect(w.Close()).To(Succeed())
	})

	It("rejects a zero tick rate", func() {
		cfg.TickRate = 0
		_, err := cfg.NewWriter(nopWriteCloser{&bytes.Buffer{}})
		Expect(err).To(HaveOccurred())
	})

	Context("with a temporary directory", func() {
		var tdir string

		BeforeEach(func() {
			var err error
			tdir, err = ioutil.TempDir("", "goledstrip_capture_test")
			Expect(err).ToNot(HaveOccurred())
			cfg.TempDir = tdir
		})

		AfterEach(func() {
			Expect(os.RemoveAll(tdir)).To(Succeed())
		})

		It("commits a capture file on Close", func() {
			cfg.Compression = CompressionSnappy
			path := filepath.Join(tdir, "out.ledc")

			w, err := cfg.Create(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(path).ToNot(BeAnExistingFile())

			Expect(w.WriteBlock(encodeFrame([]byte{0x10, 0x20, 0x30}))).To(Succeed())
			Expect(w.EndFrame()).To(Succeed())
			Expect(w.Close()).To(Succeed())
			Expect(path).To(BeAnExistingFile())

			r, err := Open(path)
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			fr, err := r.Next()
			Expect(err).ToNot(HaveOccurred())
			Expect(fr.Symbols).To(Equal(encodeFrame([]byte{0x10, 0x20, 0x30})))
		})

		It("discards a capture with no frames", func() {
			path := filepath.Join(tdir, "empty.ledc")

			w, err := cfg.Create(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(w.Close()).To(Succeed())
			Expect(path).ToNot(BeAnExistingFile())

			// Only the staging directory's parent remains.
			entries, err := ioutil.ReadDir(tdir)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("records a Channel's frames through a Tee", func() {
			path := filepath.Join(tdir, "tee.ledc")
			w, err := cfg.Create(path)
			Expect(err).ToNot(HaveOccurred())

			ch, err := channel.New(w, channel.Config{
				Pin:                "test",
				Resolution:         timing.TickRate,
				MemoryBlockSymbols: 7,
				QueueDepth:         2,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(ch.Enable()).To(Succeed())

			enc, err := protocol.NewEncoder(timing.WS2812B, timing.TickRate)
			Expect(err).ToNot(HaveOccurred())

			pool := bufferpool.Pool{Size: 3}
			ctx := context.Background()
			Expect(ch.Transmit(ctx, enc, pool.Snapshot([]byte{1, 2, 3}))).To(Succeed())
			Expect(ch.WaitAllDone(ctx)).To(Succeed())
			Expect(ch.Close()).To(Succeed())

			r, err := Open(path)
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			fr, err := r.Next()
			Expect(err).ToNot(HaveOccurred())
			Expect(fr.Symbols).To(Equal(encodeFrame([]byte{1, 2, 3})))
		})
	})
})

func TestCapture(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Test capture")
}
