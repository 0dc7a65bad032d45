package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Shard metrics
	ShardsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nyaru_shards_total",
			Help: "Total number of shards by collection",
		},
		[]string{"collection"},
	)

	ShardDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nyaru_shard_documents",
			Help: "Document count of the most recently touched shard by collection and shard id",
		},
		[]string{"collection", "shard"},
	)

	ShardAppendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_shard_append_duration_seconds",
			Help:    "Time taken to append a record to a shard",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	ShardPersistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyaru_shard_persist_failures_total",
			Help: "Total number of atomic-replace failures while persisting a shard",
		},
		[]string{"collection"},
	)

	// Compaction metrics
	CompactionCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyaru_compaction_cycles_total",
			Help: "Total number of compaction cycles run, by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)

	CompactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_compaction_duration_seconds",
			Help:    "Time taken for a single compaction cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	ShardsMergedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyaru_shards_merged_total",
			Help: "Total number of shards absorbed into a primary shard by compaction",
		},
		[]string{"collection"},
	)

	// Index metrics
	IndexKeysTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nyaru_index_keys",
			Help: "Number of distinct keys held by an index",
		},
		[]string{"collection", "field"},
	)

	IndexInsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_index_insert_duration_seconds",
			Help:    "Time taken to insert a key into a secondary index",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "field"},
	)

	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyaru_queries_total",
			Help: "Total number of queries executed by chosen strategy",
		},
		[]string{"collection", "strategy"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_query_duration_seconds",
			Help:    "End-to-end query duration by strategy",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "strategy"},
	)

	QueryResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_query_results_returned",
			Help:    "Number of records returned per query",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
		[]string{"collection"},
	)

	// Codec/serializer metrics
	CodecCompressDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nyaru_codec_compress_duration_seconds",
			Help:    "Time taken to compress a shard payload",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"codec"},
	)

	EncodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyaru_encode_failures_total",
			Help: "Total number of record encode/decode failures by format and direction",
		},
		[]string{"format", "direction"},
	)
)

func init() {
	prometheus.MustRegister(ShardsTotal)
	prometheus.MustRegister(ShardDocuments)
	prometheus.MustRegister(ShardAppendDuration)
	prometheus.MustRegister(ShardPersistFailuresTotal)
	prometheus.MustRegister(CompactionCyclesTotal)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(ShardsMergedTotal)
	prometheus.MustRegister(IndexKeysTotal)
	prometheus.MustRegister(IndexInsertDuration)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryResultsReturned)
	prometheus.MustRegister(CodecCompressDuration)
	prometheus.MustRegister(EncodeFailuresTotal)
}

// Handler returns the Prometheus HTTP handler, for host applications that
// want to expose NyaruDB2's collectors alongside their own on /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
