// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package strip

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stripLEDCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "led_strip_led_count",
		Help: "Number of LEDs on an open strip.",
	},
		[]string{"pin"})

	stripBrightnessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "led_strip_brightness",
		Help: "Current brightness level of a strip.",
	},
		[]string{"pin"})

	stripUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_strip_updates",
		Help: "Count of frames submitted by a strip.",
	},
		[]string{"pin"})

	stripUpdateTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_strip_update_timeouts",
		Help: "Count of updates that timed out waiting for the previous frame.",
	},
		[]string{"pin"})

	stripTransmitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "led_strip_transmit_failures",
		Help: "Count of submitted frames that failed to transmit.",
	},
		[]string{"pin"})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		stripLEDCountGauge,
		stripBrightnessGauge,
		stripUpdates,
		stripUpdateTimeouts,
		stripTransmitFailures,
	)
}

type monitoring struct {
	labels prometheus.Labels
}

func (m *monitoring) opened(count int, brightness uint8) {
	stripLEDCountGauge.With(m.labels).Set(float64(count))
	stripBrightnessGauge.With(m.labels).Set(float64(brightness))
}

func (m *monitoring) closed() {
	stripLEDCountGauge.With(m.labels).Set(0)
	stripBrightnessGauge.With(m.labels).Set(0)
}

func (m *monitoring) brightness(v uint8) { stripBrightnessGauge.With(m.labels).Set(float64(v)) }
func (m *monitoring) update()            { stripUpdates.With(m.labels).Inc() }
func (m *monitoring) timeout()           { stripUpdateTimeouts.With(m.labels).Inc() }
func (m *monitoring) transmitFailure()   { stripTransmitFailures.With(m.labels).Inc() }
