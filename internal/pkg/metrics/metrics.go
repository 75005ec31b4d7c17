package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for assistant turns and live sockets.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	turnDuration  *prometheus.HistogramVec
	turnOutcomes  *prometheus.CounterVec
	turnsInFlight prometheus.Gauge
	busyRejected  prometheus.Counter
	activeSockets prometheus.Gauge
}

// MustNewMetrics registers the collectors on reg and panics on a conflicting registration.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vision_assistant",
				Subsystem: "turn",
				Name:      "duration_seconds",
				Help:      "Time from accepting a turn until the reply is persisted or the turn fails.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"outcome"},
		),
		turnOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vision_assistant",
				Subsystem: "turn",
				Name:      "outcomes_total",
				Help:      "Turns by outcome. Failed runs are labelled with the provider's terminal status.",
			},
			[]string{"outcome"},
		),
		turnsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vision_assistant",
			Subsystem: "turn",
			Name:      "in_flight",
			Help:      "Turns currently waiting on the assistant.",
		}),
		busyRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vision_assistant",
			Subsystem: "turn",
			Name:      "busy_rejections_total",
			Help:      "Turns rejected because the thread already had a run in flight.",
		}),
		activeSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vision_assistant",
			Subsystem: "socket",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(m.turnDuration, m.turnOutcomes, m.turnsInFlight, m.busyRejected, m.activeSockets)
	return m
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.turnsInFlight.Inc()
}

// TurnFinished closes a turn opened with TurnStarted.
func (m *Metrics) TurnFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turnsInFlight.Dec()
	m.turnOutcomes.WithLabelValues(outcome).Inc()
	m.turnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) TurnRejectedBusy() {
	if m == nil {
		return
	}
	m.busyRejected.Inc()
}

func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.activeSockets.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.activeSockets.Dec()
}
