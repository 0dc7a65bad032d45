// Package stats publishes per-collection summaries — shard document
// counts and per-field ranges, per-index key/document counts — that
// the query planner consults to choose between an index probe, a
// partition scan, or a full scan. Snapshots are recomputed lazily
// after each mutating operation and handed out immutably so planners
// never hold the collection lock during plan execution.
package stats

import (
	"sync"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
	"github.com/nyarudb/nyarudb2/pkg/shard"

	"github.com/prometheus/client_golang/prometheus"
)

// FieldRange mirrors shard.FieldRange: the canonical-string min/max
// observed for a field within some scope (a shard, or a whole index).
type FieldRange = shard.FieldRange

// ShardStats is an immutable summary of one shard.
type ShardStats struct {
	ID            string
	DocumentCount int
	FieldRanges   map[string]FieldRange
}

// IndexStats is an immutable summary of one indexed field.
type IndexStats struct {
	Field string
	// KeyCounts maps each distinct key to the number of record
	// payloads stored under it (duplicates included).
	KeyCounts map[string]int
	// Range is the min/max key observed across the whole index.
	Range FieldRange
}

// Snapshot is a point-in-time, immutable view of one collection's
// shard and index summaries.
type Snapshot struct {
	Collection string
	ComputedAt time.Time
	Shards     []ShardStats
	Indexes    map[string]IndexStats
}

// ShardByID returns the shard summary for id, if present.
func (s Snapshot) ShardByID(id string) (ShardStats, bool) {
	for _, sh := range s.Shards {
		if sh.ID == id {
			return sh, true
		}
	}
	return ShardStats{}, false
}

// EstimatedCount returns the planner's selectivity estimate for an
// equality probe of value on an indexed field: the number of record
// payloads stored at that key, or 0 if the field isn't indexed or the
// key is absent.
func (s Snapshot) EstimatedCount(field, value string) int {
	idx, ok := s.Indexes[field]
	if !ok {
		return 0
	}
	return idx.KeyCounts[value]
}

// Engine owns the current snapshot for one collection and keeps it
// synchronized with the collection's ShardManager and IndexManager.
// It implements prometheus.Collector so a host application can
// register it directly alongside the package-level collectors in
// pkg/metrics.
type Engine struct {
	collection string

	mu   sync.RWMutex
	snap Snapshot
}

// NewEngine creates a StatsEngine with an empty snapshot.
func NewEngine(collection string) *Engine {
	e := &Engine{collection: collection}
	e.snap = Snapshot{Collection: collection, ComputedAt: timeNow(), Indexes: map[string]IndexStats{}}
	return e
}

// timeNow is a seam so tests can assert ComputedAt without requiring
// wall-clock awareness of this package's callers.
var timeNow = time.Now

// Recompute rebuilds the snapshot from the current shard and index
// state. Callers invoke it after every mutating operation on the
// collection (insert, delete, update, repartition, createIndex), per
// the "recomputed lazily after each mutation" contract.
func (e *Engine) Recompute(shards []shard.ShardInfo, indexes *index.Manager) {
	shardStats := make([]ShardStats, 0, len(shards))
	for _, si := range shards {
		ranges := make(map[string]FieldRange, len(si.Metadata.FieldStats))
		for field, r := range si.Metadata.FieldStats {
			ranges[field] = r
		}
		shardStats = append(shardStats, ShardStats{
			ID:            si.ID,
			DocumentCount: si.Metadata.DocumentCount,
			FieldRanges:   ranges,
		})
	}

	indexStats := make(map[string]IndexStats)
	if indexes != nil {
		for _, field := range indexes.Fields() {
			indexStats[field] = summarizeIndex(field, indexes)
		}
	}

	e.mu.Lock()
	e.snap = Snapshot{
		Collection: e.collection,
		ComputedAt: timeNow(),
		Shards:     shardStats,
		Indexes:    indexStats,
	}
	e.mu.Unlock()

	metrics.ShardsTotal.WithLabelValues(e.collection).Set(float64(len(shardStats)))
	for field, is := range indexStats {
		metrics.IndexKeysTotal.WithLabelValues(e.collection, field).Set(float64(len(is.KeyCounts)))
	}
}

func summarizeIndex(field string, indexes *index.Manager) IndexStats {
	entries := indexes.AllEntries(field)
	counts := make(map[string]int, len(entries))
	var rng FieldRange
	for i, e := range entries {
		counts[e.Key] = len(e.Values)
		if i == 0 {
			rng.Min = e.Key
		}
		rng.Max = e.Key
	}
	return IndexStats{Field: field, KeyCounts: counts, Range: rng}
}

// Snapshot returns the current immutable snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

var (
	shardDocsDesc = prometheus.NewDesc(
		"nyaru_stats_shard_documents",
		"Document count per shard, from the last recomputed stats snapshot",
		[]string{"collection", "shard"}, nil,
	)
	indexKeysDesc = prometheus.NewDesc(
		"nyaru_stats_index_distinct_keys",
		"Distinct key count per index, from the last recomputed stats snapshot",
		[]string{"collection", "field"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (e *Engine) Describe(ch chan<- *prometheus.Desc) {
	ch <- shardDocsDesc
	ch <- indexKeysDesc
}

// Collect implements prometheus.Collector.
func (e *Engine) Collect(ch chan<- prometheus.Metric) {
	snap := e.Snapshot()
	for _, s := range snap.Shards {
		ch <- prometheus.MustNewConstMetric(shardDocsDesc, prometheus.GaugeValue, float64(s.DocumentCount), snap.Collection, s.ID)
	}
	for field, is := range snap.Indexes {
		ch <- prometheus.MustNewConstMetric(indexKeysDesc, prometheus.GaugeValue, float64(len(is.KeyCounts)), snap.Collection, field)
	}
}
