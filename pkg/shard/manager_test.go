package shard

import (
	"context"
	"testing"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, threshold int) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Collection:            "Users",
		Dir:                   t.TempDir(),
		Codec:                 codec.None,
		Format:                wire.TagTree,
		CompactionThreshold:   threshold,
		CompactionIntervalSec: 3600, // tests drive compaction manually
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func TestGetOrCreateShardIsIdempotent(t *testing.T) {
	m := newTestManager(t, 100)
	a := m.GetOrCreateShard("p1")
	b := m.GetOrCreateShard("p1")
	assert.Same(t, a, b)
}

func TestGetShardNotFound(t *testing.T) {
	m := newTestManager(t, 100)
	_, err := m.GetShard("missing")
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestCleanupEmptyShards(t *testing.T) {
	m := newTestManager(t, 100)
	empty := m.GetOrCreateShard("empty")
	_ = empty
	nonEmpty := m.GetOrCreateShard("full")
	require.NoError(t, nonEmpty.Append(wire.Document{"id": "1"}))

	removed, err := m.CleanupEmptyShards()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = m.GetShard("empty")
	assert.Error(t, err)
	_, err = m.GetShard("full")
	assert.NoError(t, err)
}

// TestCompactionMergesSmallShards is the literal S5 scenario: three
// shards under threshold with 2, 3, and 4 documents compact into one
// shard with 9 documents, and the other two are removed.
func TestCompactionMergesSmallShards(t *testing.T) {
	m := newTestManager(t, 100)

	counts := map[string]int{"a": 2, "b": 3, "c": 4}
	for id, n := range counts {
		s := m.GetOrCreateShard(id)
		for i := 0; i < n; i++ {
			require.NoError(t, s.Append(wire.Document{"shard": id, "seq": i}))
		}
		time.Sleep(time.Millisecond) // distinct createdAt ordering
	}

	require.NoError(t, m.runCompaction())

	remaining := m.AllShards()
	require.Len(t, remaining, 1)

	total := 0
	for _, s := range remaining {
		total += s.Metadata().DocumentCount
	}
	assert.Equal(t, 9, total)

	docs, err := remaining[0].LoadAll()
	require.NoError(t, err)
	assert.Len(t, docs, 9)
}

func TestCompactionNoopBelowTwoCandidates(t *testing.T) {
	m := newTestManager(t, 100)
	s := m.GetOrCreateShard("only")
	require.NoError(t, s.Append(wire.Document{"id": "1"}))

	require.NoError(t, m.runCompaction())
	assert.Len(t, m.AllShards(), 1)
}

func TestCompactionIgnoresShardsAboveThreshold(t *testing.T) {
	m := newTestManager(t, 3)

	big := m.GetOrCreateShard("big")
	for i := 0; i < 5; i++ {
		require.NoError(t, big.Append(wire.Document{"seq": i}))
	}
	small := m.GetOrCreateShard("small")
	require.NoError(t, small.Append(wire.Document{"seq": 0}))

	require.NoError(t, m.runCompaction())

	// only one shard was under threshold, so nothing to merge it with
	assert.Len(t, m.AllShards(), 2)
}

func TestRemoveAllShards(t *testing.T) {
	m := newTestManager(t, 100)
	m.GetOrCreateShard("a")
	m.GetOrCreateShard("b")
	require.NoError(t, m.RemoveAllShards())
	assert.Empty(t, m.AllShards())
}

func TestManagerReloadsExistingShardsOnOpen(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(Config{Collection: "Users", Dir: dir, Codec: codec.None, Format: wire.TagTree})
	require.NoError(t, err)
	s := m1.GetOrCreateShard("p1")
	require.NoError(t, s.Append(wire.Document{"id": "1"}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m1.Close(ctx))

	m2, err := NewManager(Config{Collection: "Users", Dir: dir, Codec: codec.None, Format: wire.TagTree})
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m2.Close(ctx)
	}()

	reopened, err := m2.GetShard("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Metadata().DocumentCount)
}
