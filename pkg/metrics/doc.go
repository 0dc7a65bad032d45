/*
Package metrics defines and registers NyaruDB2's Prometheus collectors.

Every metric is registered at package init against the default
registry, so importing this package anywhere in a process is enough to
make the metrics observable once something exposes Handler() on an
HTTP mux.

# Metrics Catalog

Shard Metrics:

nyaru_shards_total{collection}:
  - Type: Gauge
  - Description: Total number of shards currently held open

nyaru_shard_documents{collection, shard}:
  - Type: Gauge
  - Description: Document count of the most recently touched shard

nyaru_shard_append_duration_seconds{collection}:
  - Type: Histogram
  - Description: Time taken to append a record to a shard

nyaru_shard_persist_failures_total{collection}:
  - Type: Counter
  - Description: Atomic-replace failures while persisting a shard to disk

Compaction Metrics:

nyaru_compaction_cycles_total{collection, outcome}:
  - Type: Counter
  - Description: Compaction cycles that merged shards, with outcome "merged"; cycles that find fewer than two candidates or fail are not counted

nyaru_compaction_duration_seconds{collection}:
  - Type: Histogram
  - Description: Time taken for a single compaction cycle

nyaru_shards_merged_total{collection}:
  - Type: Counter
  - Description: Shards absorbed into a primary shard by compaction

Index Metrics:

nyaru_index_keys{collection, field}:
  - Type: Gauge
  - Description: Number of distinct keys held by a secondary index

nyaru_index_insert_duration_seconds{collection, field}:
  - Type: Histogram
  - Description: Time taken to insert a key into a secondary index

Query Metrics:

nyaru_queries_total{collection, strategy}:
  - Type: Counter
  - Description: Queries executed, labeled by the strategy the planner chose

nyaru_query_duration_seconds{collection, strategy}:
  - Type: Histogram
  - Description: End-to-end query duration by strategy

nyaru_query_results_returned{collection}:
  - Type: Histogram
  - Description: Number of records returned per query

Codec Metrics:

nyaru_codec_compress_duration_seconds{codec}:
  - Type: Histogram
  - Description: Time taken to compress a shard payload

nyaru_encode_failures_total{format, direction}:
  - Type: Counter
  - Description: Record encode/decode failures by wire format and direction

Stats Snapshot Metrics (registered per collection, not at package init;
see stats.Engine, which implements prometheus.Collector):

nyaru_stats_shard_documents{collection, shard}:
  - Type: Gauge
  - Description: Document count from the last stats snapshot

nyaru_stats_index_distinct_keys{collection, field}:
  - Type: Gauge
  - Description: Distinct key count from the last stats snapshot

# Usage

Recording a duration with the Timer helper:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.ShardAppendDuration, collection)

Exposing the /metrics endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Design Patterns

Package-level variables, registered once in init(), are shared across
every collection opened in the process; collection-scoped state
(per-shard document counts, per-field index sizes) is carried entirely
in label values rather than in separate collector instances. The one
exception is stats.Engine, which is registered per collection by a
caller that wants its own gauges rather than label-distinguished ones.
*/
package metrics
