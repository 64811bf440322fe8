// Package metrics exposes the Prometheus counters, gauges, and histograms
// the collector reports, adapted from the teacher's pkg/metrics and
// pkg/scanner/metrics packages for a single-process collection run
// instead of a distributed scan fleet.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const namespace = "adcollect"

// Collector is the full set of metrics a run reports.
type Collector struct {
	ObjectsProduced  prometheus.Counter
	ObjectsProcessed prometheus.Counter
	ObjectErrors     prometheus.Counter
	RecordsWritten   prometheus.Counter

	ActiveWorkers prometheus.Gauge
	WorkerErrors  prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	LoopPasses      prometheus.Counter
	ProcessDuration prometheus.Histogram
	LDAPQueryTime   prometheus.Histogram
}

// New creates a Collector with every metric registered against the
// default Prometheus registry.
func New() *Collector {
	return &Collector{
		ObjectsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_produced_total",
			Help:      "Total number of directory objects read from the producer.",
		}),
		ObjectsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_processed_total",
			Help:      "Total number of directory objects successfully processed.",
		}),
		ObjectErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_errors_total",
			Help:      "Total number of per-object processing errors.",
		}),
		RecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Total number of output records written to disk.",
		}),
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of worker goroutines currently processing objects.",
		}),
		WorkerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_errors_total",
			Help:      "Total number of worker goroutine failures.",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of resolver cache lookups that hit.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of resolver cache lookups that missed.",
		}),
		LoopPasses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_passes_total",
			Help:      "Total number of completed loop collection passes.",
		}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "object_process_duration_seconds",
			Help:      "Time taken to process a single directory object.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		LDAPQueryTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ldap_query_duration_seconds",
			Help:      "Time taken to execute an LDAP search page.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
}

// TrackProcess times f and records it against ProcessDuration, incrementing
// ObjectErrors if f fails.
func (c *Collector) TrackProcess(f func() error) error {
	start := time.Now()
	err := f()
	c.ProcessDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.ObjectErrors.Inc()
	}
	return err
}

// StartServer exposes the registered metrics over HTTP at /metrics.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
