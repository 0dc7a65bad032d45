package query

import (
	"context"
	"testing"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/nyarudb/nyarudb2/pkg/stats"
	"github.com/nyarudb/nyarudb2/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	shards *shard.Manager
	idx    *index.Manager
	snap   stats.Snapshot
}

// seedUsers builds the literal S1-S4 scenario: five documents in one
// shard of collection Users, indexed on name and age.
func seedUsers(t *testing.T) fixture {
	t.Helper()
	format := wire.TagTree

	sm, err := shard.NewManager(shard.Config{
		Collection:            "Users",
		Dir:                   t.TempDir(),
		Codec:                 codec.None,
		Format:                format,
		IndexFields:           func() []string { return []string{"name", "age"} },
		CompactionIntervalSec: 3600,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sm.Close(ctx)
	})

	idx := index.NewManager("Users", 3)
	idx.CreateIndex("name")
	idx.CreateIndex("age")

	docs := []wire.Document{
		{"id": int64(1), "name": "Alice", "age": int64(30)},
		{"id": int64(2), "name": "Bob", "age": int64(25)},
		{"id": int64(3), "name": "Charlie", "age": int64(35)},
		{"id": int64(4), "name": "David", "age": int64(40)},
		{"id": int64(5), "name": "Alice", "age": int64(45)},
	}

	s := sm.GetOrCreateShard("default")
	for _, doc := range docs {
		require.NoError(t, s.Append(doc))
		recBytes, err := wire.Encode(doc, format)
		require.NoError(t, err)
		for _, field := range []string{"name", "age"} {
			val, ok, err := wire.ExtractField(recBytes, field, format)
			require.NoError(t, err)
			require.True(t, ok)
			idx.Insert(field, val, recBytes)
		}
	}

	statsEngine := stats.NewEngine("Users")
	statsEngine.Recompute(sm.AllShardInfo(), idx)

	return fixture{shards: sm, idx: idx, snap: statsEngine.Snapshot()}
}

func idsOf(t *testing.T, docs []wire.Document) []int64 {
	t.Helper()
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["id"].(int64))
	}
	return out
}

func TestScenarioS1EqualityFilter(t *testing.T) {
	f := seedUsers(t)
	q := New("Users").Where(Eq("name", "Alice"))
	plan := BuildPlan(q, f.idx, f.snap, "")
	assert.Equal(t, StrategyIndex, plan.Strategy)

	it, err := Execute("Users", plan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	docs, err := Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 5}, idsOf(t, docs))
}

func TestScenarioS2Between(t *testing.T) {
	f := seedUsers(t)
	q := New("Users").Where(Between("age", "30", "40"))
	plan := BuildPlan(q, f.idx, f.snap, "")
	assert.Equal(t, StrategyIndex, plan.Strategy)

	it, err := Execute("Users", plan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	docs, err := Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3, 4}, idsOf(t, docs))
}

func TestScenarioS3StartsWith(t *testing.T) {
	f := seedUsers(t)
	q := New("Users").Where(StartsWith("name", "A"))
	plan := BuildPlan(q, f.idx, f.snap, "")
	assert.Equal(t, StrategyIndex, plan.Strategy)

	it, err := Execute("Users", plan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	docs, err := Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 5}, idsOf(t, docs))
}

func TestScenarioS4Contains(t *testing.T) {
	f := seedUsers(t)
	q := New("Users").Where(Contains("name", "v"))
	// contains is never indexable, so this always falls through to a scan.
	plan := BuildPlan(q, f.idx, f.snap, "")
	assert.Equal(t, StrategyScan, plan.Strategy)

	it, err := Execute("Users", plan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	docs, err := Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4}, idsOf(t, docs))
}

func TestPlanEquivalenceAcrossStrategies(t *testing.T) {
	f := seedUsers(t)

	// Run the same predicate once through the planner's index-driven
	// plan and once through a hand-built full-scan plan: both must
	// produce the identical result set.
	indexed := New("Users").Where(Eq("name", "Alice"))
	indexPlan := BuildPlan(indexed, f.idx, f.snap, "")
	require.Equal(t, StrategyIndex, indexPlan.Strategy)
	indexIt, err := Execute("Users", indexPlan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	indexDocs, err := Collect(indexIt)
	require.NoError(t, err)

	scanPlan := Plan{Strategy: StrategyScan, Residual: indexed.Predicates()}
	scanIt, err := Execute("Users", scanPlan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	scanDocs, err := Collect(scanIt)
	require.NoError(t, err)

	assert.ElementsMatch(t, idsOf(t, indexDocs), idsOf(t, scanDocs))
}

func TestConjunctionOfTwoPredicates(t *testing.T) {
	f := seedUsers(t)
	q := New("Users").Where(Eq("name", "Alice")).Where(GreaterThan("age", "40"))
	plan := BuildPlan(q, f.idx, f.snap, "")

	it, err := Execute("Users", plan, f.idx, f.shards, wire.TagTree)
	require.NoError(t, err)
	docs, err := Collect(it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{5}, idsOf(t, docs))
}
