package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"blockstream/types"
)

// Metrics holds the service's prometheus collectors on a private registry
type Metrics struct {
	Registry          *prometheus.Registry
	BlocksParsed      *prometheus.CounterVec
	StreamChunks      prometheus.Counter
	HighlightsDropped *prometheus.CounterVec
	ParseDuration     prometheus.Histogram
	ActiveSessions    prometheus.GaugeFunc
}

// NewMetrics registers every collector. sessions reports the number of open
// streaming sessions and may be nil.
func NewMetrics(sessions func() int) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BlocksParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockstream_blocks_parsed_total",
			Help: "Blocks produced by full parses and finished streams, by kind.",
		}, []string{"kind"}),
		StreamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockstream_stream_chunks_total",
			Help: "Text deltas fed to streaming sessions.",
		}),
		HighlightsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockstream_highlights_dropped_total",
			Help: "Stored highlights dropped during resolution, by reason.",
		}, []string{"reason"}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blockstream_parse_duration_seconds",
			Help:    "Time spent in full-text parses.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if sessions == nil {
		sessions = func() int { return 0 }
	}
	m.ActiveSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "blockstream_active_sessions",
		Help: "Streaming sessions currently cached.",
	}, func() float64 { return float64(sessions()) })

	m.Registry.MustRegister(m.BlocksParsed, m.StreamChunks, m.HighlightsDropped, m.ParseDuration, m.ActiveSessions)
	return m
}

// ObserveBlocks counts blocks by kind
func (m *Metrics) ObserveBlocks(blocks []types.MessageBlock) {
	for _, b := range blocks {
		m.BlocksParsed.WithLabelValues(b.Kind().String()).Inc()
	}
}
