package stats

import (
	"testing"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeBuildsShardAndIndexSummaries(t *testing.T) {
	e := NewEngine("Users")

	shards := []shard.ShardInfo{
		{ID: "p1", Metadata: shard.Metadata{
			DocumentCount: 3,
			FieldStats:    map[string]shard.FieldRange{"age": {Min: "25", Max: "35"}},
		}},
		{ID: "p2", Metadata: shard.Metadata{
			DocumentCount: 2,
			FieldStats:    map[string]shard.FieldRange{"age": {Min: "40", Max: "45"}},
		}},
	}

	idx := index.NewManager("Users", 3)
	idx.CreateIndex("age")
	idx.Insert("age", "30", []byte("alice"))
	idx.Insert("age", "30", []byte("eve"))
	idx.Insert("age", "25", []byte("bob"))

	e.Recompute(shards, idx)
	snap := e.Snapshot()

	require.Len(t, snap.Shards, 2)
	p1, ok := snap.ShardByID("p1")
	require.True(t, ok)
	assert.Equal(t, 3, p1.DocumentCount)
	assert.Equal(t, "25", p1.FieldRanges["age"].Min)

	ageStats, ok := snap.Indexes["age"]
	require.True(t, ok)
	assert.Equal(t, 2, ageStats.KeyCounts["30"])
	assert.Equal(t, 1, ageStats.KeyCounts["25"])
	assert.Equal(t, "25", ageStats.Range.Min)
	assert.Equal(t, "30", ageStats.Range.Max)

	assert.Equal(t, 2, snap.EstimatedCount("age", "30"))
	assert.Equal(t, 0, snap.EstimatedCount("missingField", "x"))
}

func TestSnapshotIsImmutableAcrossRecompute(t *testing.T) {
	e := NewEngine("Users")
	idx := index.NewManager("Users", 3)

	e.Recompute([]shard.ShardInfo{{ID: "a", Metadata: shard.Metadata{DocumentCount: 1}}}, idx)
	first := e.Snapshot()

	e.Recompute([]shard.ShardInfo{{ID: "a", Metadata: shard.Metadata{DocumentCount: 5}}}, idx)
	second := e.Snapshot()

	// first must remain the value it was handed, unaffected by the
	// later recompute.
	firstShard, _ := first.ShardByID("a")
	assert.Equal(t, 1, firstShard.DocumentCount)
	secondShard, _ := second.ShardByID("a")
	assert.Equal(t, 5, secondShard.DocumentCount)
	assert.True(t, second.ComputedAt.After(first.ComputedAt) || second.ComputedAt.Equal(first.ComputedAt))
}

func TestEmptyEngineSnapshotHasNoShardsOrIndexes(t *testing.T) {
	e := NewEngine("Users")
	snap := e.Snapshot()
	assert.Equal(t, "Users", snap.Collection)
	assert.Empty(t, snap.Shards)
	assert.Empty(t, snap.Indexes)
	assert.WithinDuration(t, time.Now(), snap.ComputedAt, time.Minute)
}

func TestCollectEmitsOneMetricPerShardAndIndex(t *testing.T) {
	e := NewEngine("Users")
	idx := index.NewManager("Users", 3)
	idx.CreateIndex("age")
	idx.Insert("age", "30", []byte("alice"))

	e.Recompute([]shard.ShardInfo{{ID: "p1", Metadata: shard.Metadata{DocumentCount: 1}}}, idx)

	count := testutil.CollectAndCount(e, "nyaru_stats_shard_documents", "nyaru_stats_index_distinct_keys")
	assert.Equal(t, 2, count)
}
