package observability

import (
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	turns          *prometheus.CounterVec
	chunks         *prometheus.CounterVec
	scriptDuration prometheus.Histogram
	hops           prometheus.Histogram
}

// NewMetrics registers the engine collectors on reg. A nil reg falls back to
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_turns_total",
			Help: "Processed turns by platform and result.",
		}, []string{"platform", "result"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_outbound_chunks_total",
			Help: "Outbound chunks handed to the connector.",
		}, []string{"platform"}),
		scriptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_script_duration_seconds",
			Help:    "Wall time of one block script execution.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		hops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_goto_hops",
			Help:    "Block executions per turn, counting chained go_to re-entries.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}

	reg.MustRegister(m.turns, m.chunks, m.scriptDuration, m.hops)
	return m
}

// Hooks binds the collectors to engine lifecycle callbacks.
func (m *Metrics) Hooks() runtime.Hooks {
	return runtime.Hooks{
		TurnFinished: func(platform, result string, elapsed time.Duration) {
			m.turns.WithLabelValues(platform, result).Inc()
		},
		ScriptRan: func(blockID int64, elapsed time.Duration, err error) {
			m.scriptDuration.Observe(elapsed.Seconds())
		},
		ChunkSent: func(platform string) {
			m.chunks.WithLabelValues(platform).Inc()
		},
		Hops: func(count int) {
			m.hops.Observe(float64(count))
		},
	}
}
