package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus metrics for one Server instance. They
// register on the configured registry, so two servers in one process
// need distinct registries.
type metrics struct {
	streamsActive     prometheus.Gauge
	streamsTotal      prometheus.Counter
	streamDrops       prometheus.Counter
	transactionsTotal prometheus.Counter
	publishDuration   prometheus.Histogram
	framesSent        prometheus.Counter
	bytesSent         prometheus.Counter
	resyncsTotal      *prometheus.CounterVec
	journalFailures   prometheus.Counter
}

func newMetrics(registry prometheus.Registerer) *metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &metrics{
		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "streams_active",
			Help:      "Currently connected mount streams",
		}),

		streamsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "streams_total",
			Help:      "Total mount streams accepted",
		}),

		streamDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "stream_drops_total",
			Help:      "Streams dropped because their send queue overflowed",
		}),

		transactionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "transactions_published_total",
			Help:      "Transactions published to the mount stream",
		}),

		publishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "publish_duration_seconds",
			Help:      "Time to pull, encode, record, and fan out one transaction",
			Buckets: []float64{
				0.0001, 0.00025, 0.0005, 0.001, 0.0025,
				0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
			},
		}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "frames_sent_total",
			Help:      "Frames queued to streams",
		}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "bytes_sent_total",
			Help:      "Frame bytes queued to streams",
		}),

		resyncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "resyncs_total",
			Help:      "Client catch-ups, by outcome",
		}, []string{"outcome"}),

		journalFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stratum",
			Subsystem: "server",
			Name:      "journal_failures_total",
			Help:      "Journal appends that returned an error",
		}),
	}
}

// Resync outcome label values.
const (
	resyncCurrent  = "current"  // Client already at the head revision
	resyncReplay   = "replay"   // Gap bridged from history
	resyncSnapshot = "snapshot" // Gap too old, full snapshot sent
)
