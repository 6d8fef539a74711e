package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Collection-level metrics
	CollectionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moldb_collections_total",
			Help: "Total number of registered collections",
		},
	)

	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moldb_documents_total",
			Help: "Approximate number of documents per collection",
		},
		[]string{"collection"},
	)

	IndexesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moldb_indexes_total",
			Help: "Number of secondary indexes per collection",
		},
		[]string{"collection"},
	)

	// CRUD operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_operations_total",
			Help: "Total number of CRUD operations by collection, operation, and status",
		},
		[]string{"collection", "op", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldb_operation_duration_seconds",
			Help:    "Duration of a CRUD operation in seconds by collection and operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "op"},
	)

	// Index maintenance metrics
	IndexMaintenanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldb_index_maintenance_duration_seconds",
			Help:    "Time spent building or dropping a secondary index",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "index", "action"},
	)

	IndexConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_index_conflicts_total",
			Help: "Total number of unique-index conflicts rejected",
		},
		[]string{"collection", "index"},
	)

	// Query executor metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_queries_total",
			Help: "Total number of Find/FindOne queries by access path",
		},
		[]string{"collection", "access_path"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldb_query_duration_seconds",
			Help:    "Duration of a Find/FindOne query in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "access_path"},
	)

	// Cache metrics
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_cache_hits_total",
			Help: "Total number of fxcache.Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_cache_misses_total",
			Help: "Total number of fxcache.Cache misses by cache name",
		},
		[]string{"cache"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_cache_evictions_total",
			Help: "Total number of fxcache.Cache evictions by cache name and cause",
		},
		[]string{"cache", "cause"},
	)

	// Concurrency / storage engine metrics
	WriteLockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moldb_write_lock_wait_duration_seconds",
			Help:    "Time a writer spent waiting to acquire the single-writer lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldb_transactions_total",
			Help: "Total number of storage transactions by writable and outcome",
		},
		[]string{"writable", "outcome"},
	)

	EnvironmentSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moldb_environment_size_bytes",
			Help: "Approximate on-disk size of the open environment",
		},
	)
)

func init() {
	prometheus.MustRegister(CollectionsTotal)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(IndexesTotal)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(IndexMaintenanceDuration)
	prometheus.MustRegister(IndexConflictsTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(WriteLockWaitDuration)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(EnvironmentSizeBytes)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
