// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package channel

import (
	"github.com/danjacques/goledstrip/protocol"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	channelQueuedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "led_channel_queued_transmissions",
		Help: "Count of transmissions submitted to a channel that have not completed.",
	},
		[]string{"pin"})

	channelFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_channel_frames",
		Help: "Count of frames transmitted by a channel.",
	},
		[]string{"pin"})

	channelBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_channel_blocks",
		Help: "Count of symbol memory blocks written by a channel.",
	},
		[]string{"pin"})

	channelSymbols = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_channel_symbols",
		Help: "Count of waveform symbols written by a channel.",
	},
		[]string{"pin"})

	channelErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_channel_errors",
		Help: "Count of errors encountered transmitting frames.",
	},
		[]string{"pin"})

	channelAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_channel_aborted_frames",
		Help: "Count of partially-written frames that were discarded.",
	},
		[]string{"pin"})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		channelQueuedGauge,
		channelFrames,
		channelBlocks,
		channelSymbols,
		channelErrors,
		channelAborted,
	)
}

// monitoredLine wraps a Line and records block, symbol, and frame metrics.
type monitoredLine struct {
	Line
	labels prometheus.Labels
}

func monitorLine(pin string, l Line) *monitoredLine {
	return &monitoredLine{
		Line:   l,
		labels: prometheus.Labels{"pin": pin},
	}
}

func (ml *monitoredLine) WriteBlock(block []protocol.Symbol) error {
	if err := ml.Line.WriteBlock(block); err != nil {
		channelErrors.With(ml.labels).Inc()
		return err
	}

	channelBlocks.With(ml.labels).Inc()
	channelSymbols.With(ml.labels).Add(float64(len(block)))
	return nil
}

func (ml *monitoredLine) EndFrame() error {
	if err := ml.Line.EndFrame(); err != nil {
		channelErrors.With(ml.labels).Inc()
		return err
	}

	channelFrames.With(ml.labels).Inc()
	return nil
}

func (ml *monitoredLine) AbortFrame() {
	ml.Line.AbortFrame()
	channelAborted.With(ml.labels).Inc()
}

func (ml *monitoredLine) setQueued(v int) { channelQueuedGauge.With(ml.labels).Set(float64(v)) }
