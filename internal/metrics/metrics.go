package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"perfwatch.sh/pkg/perf"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Ingestion metrics
	SamplesIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfwatch_samples_ingested_total",
			Help: "Total number of samples recorded",
		},
	)

	SamplesAnomalousTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfwatch_samples_anomalous_total",
			Help: "Total number of samples flagged anomalous at capture",
		},
	)
)

// RegisterCollector exposes live collector state as gauges. It reads
// perf.Collector.Stats on every scrape.
func RegisterCollector(c *perf.Collector) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "perfwatch_store_samples",
			Help: "Current number of samples in the bounded store",
		}, func() float64 {
			return float64(c.Stats().StoreSize)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "perfwatch_store_anomalous_samples",
			Help: "Current number of anomalous samples in the store",
		}, func() float64 {
			return float64(c.Stats().AnomalousCount)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "perfwatch_store_evictions_total",
			Help: "Number of retention-policy evictions performed",
		}, func() float64 {
			return float64(c.Stats().Evictions)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "perfwatch_memory_usage_bytes",
			Help: "Most recent sampled process memory usage",
		}, func() float64 {
			return float64(c.Stats().MemoryUsage)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "perfwatch_memory_baseline_bytes",
			Help: "Session memory baseline",
		}, func() float64 {
			return float64(c.Stats().MemoryBaseline)
		}),
	)
}
