/*
Package metrics provides Prometheus metrics collection and exposition for
moldb, plus a small HTTP health-check surface for the "moldb serve" command.

# Architecture

All metrics are registered once at package init. They are updated inline
by pkg/moldb and pkg/collection rather than by a separate polling
collector: moldb is an embedded, single-process library, so there is no
external component to scrape for gauges the way a clustered service would.
The catalog gauges and moldb_cache_evictions_total are registered but no
moldb package updates them.

# Metrics Catalog

Catalog gauges:

  - moldb_collections_total: number of registered collections
  - moldb_documents_total{collection}: documents per collection
  - moldb_indexes_total{collection}: secondary indexes per collection

Operation counters and histograms:

  - moldb_operations_total{collection,op,status}
  - moldb_operation_duration_seconds{collection,op}

Index maintenance:

  - moldb_index_maintenance_duration_seconds{collection,index,action}
  - moldb_index_conflicts_total{collection,index}

Query:

  - moldb_queries_total{collection,access_path}
  - moldb_query_duration_seconds{collection,access_path}

Cache (pkg/fxcache instances, including the collection engine's tree-handle
arena):

  - moldb_cache_hits_total{cache}
  - moldb_cache_misses_total{cache}
  - moldb_cache_evictions_total{cache,cause}

Concurrency and transactions:

  - moldb_write_lock_wait_duration_seconds: time spent waiting on the writer mutex
  - moldb_transactions_total{writable,outcome}
  - moldb_environment_size_bytes: bbolt file size

# Usage

	import "github.com/cuemby/moldb/pkg/metrics"

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.OperationDuration, "users", "insert_one")

	http.Handle("/metrics", metrics.Handler())

# Health Endpoints

HealthHandler, ReadyHandler, and LivenessHandler back the /health, /ready,
and /live routes of "moldb serve". moldb has a single critical dependency,
the bbolt environment behind an open Database, registered under the
component name "storage".

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
