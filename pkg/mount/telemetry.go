package mount

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the mount Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "stratum").
	Namespace string

	// Subsystem is the metrics subsystem (default: "mount").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for diff duration, in seconds.
	// The defaults cover the sub-millisecond range a warm diff lives in.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the mount Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithMetricsSubsystem sets the metrics subsystem.
func WithMetricsSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithMetricsConstLabels sets constant labels for all metrics.
func WithMetricsConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithMetricsBuckets sets the diff duration histogram buckets.
func WithMetricsBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithMetricsRegistry sets the Prometheus registry.
func WithMetricsRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "stratum",
		Subsystem: "mount",
		Buckets: []float64{
			0.00005, 0.0001, 0.00025, 0.0005, 0.001,
			0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
		},
		Registry: prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the mount pipeline.
type metrics struct {
	diffsTotal     prometheus.Counter
	diffDuration   prometheus.Histogram
	mutationsTotal *prometheus.CounterVec
	emptyPulls     prometheus.Counter
}

// globalMetrics is the singleton metrics instance, created by the first
// EnableMetrics call.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		diffsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "diffs_total",
			Help:        "Total number of tree diffs computed",
			ConstLabels: config.ConstLabels,
		}),

		diffDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "diff_duration_seconds",
			Help:        "Tree diff duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total mutations emitted, by mutation type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		emptyPulls: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "empty_pulls_total",
			Help:        "Transaction pulls that found no new revision",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// EnableMetrics registers the mount metrics. The first call wins; later
// calls are no-ops so libraries and applications can both enable metrics
// without double registration.
//
// Metrics collected:
//   - stratum_mount_diffs_total: Counter of tree diffs
//   - stratum_mount_diff_duration_seconds: Histogram of diff duration
//   - stratum_mount_mutations_total: Counter of mutations by type
//   - stratum_mount_empty_pulls_total: Counter of up-to-date pulls
func EnableMetrics(opts ...MetricsOption) {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
}

// recordDiff feeds one finished diff into the metrics, if enabled.
func recordDiff(duration time.Duration, mutations []Mutation) {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()
	if m == nil {
		return
	}

	m.diffsTotal.Inc()
	m.diffDuration.Observe(duration.Seconds())

	var counts [5]int
	for _, mutation := range mutations {
		switch mutation.Type {
		case MutationCreate:
			counts[0]++
		case MutationDelete:
			counts[1]++
		case MutationInsert:
			counts[2]++
		case MutationRemove:
			counts[3]++
		case MutationUpdate:
			counts[4]++
		}
	}
	types := [5]MutationType{MutationCreate, MutationDelete, MutationInsert, MutationRemove, MutationUpdate}
	for i, n := range counts {
		if n > 0 {
			m.mutationsTotal.WithLabelValues(types[i].String()).Add(float64(n))
		}
	}
}

// recordEmptyPull counts a pull that found nothing new, if enabled.
func recordEmptyPull() {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()
	if m == nil {
		return
	}
	m.emptyPulls.Inc()
}
