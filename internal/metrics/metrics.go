// Package metrics exposes Prometheus collectors for parse sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scriptai"

// Collector implements stream.Recorder on top of Prometheus collectors.
type Collector struct {
	chunks   prometheus.Counter
	segments *prometheus.CounterVec
	sessions *prometheus.CounterVec
	think    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Text deltas folded into parse sessions.",
		}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Finalized segments by kind.",
		}, []string{"kind"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Parse sessions by outcome (end, stop, error).",
		}, []string{"outcome"}),
		think: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "think_duration_seconds",
			Help:      "Time spent inside think blocks.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(c.chunks, c.segments, c.sessions, c.think)
	return c
}

func (c *Collector) ObserveChunk() { c.chunks.Inc() }

func (c *Collector) ObserveSegment(kind string) { c.segments.WithLabelValues(kind).Inc() }

func (c *Collector) ObserveThink(d time.Duration) { c.think.Observe(d.Seconds()) }

func (c *Collector) ObserveSession(outcome string) { c.sessions.WithLabelValues(outcome).Inc() }
