package engine

import (
	"context"
	"os"
	"testing"

	"github.com/nyarudb/nyarudb2/pkg/query"
	"github.com/nyarudb/nyarudb2/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersCollection(t *testing.T, cfg CollectionConfig) *Collection {
	t.Helper()
	e := newTestEngine(t)
	cfg.Name = "Users"
	c, err := e.GetOrCreateCollection(cfg)
	require.NoError(t, err)
	return c
}

func seedUsers(t *testing.T, c *Collection) {
	t.Helper()
	docs := []wire.Document{
		{"id": int64(1), "name": "Alice", "age": int64(30)},
		{"id": int64(2), "name": "Bob", "age": int64(25)},
		{"id": int64(3), "name": "Charlie", "age": int64(35)},
		{"id": int64(4), "name": "David", "age": int64(40)},
		{"id": int64(5), "name": "Alice", "age": int64(45)},
	}
	require.NoError(t, c.BulkInsert(context.Background(), docs))
}

func idsOf(t *testing.T, docs []wire.Document) []int64 {
	t.Helper()
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["id"].(int64))
	}
	return out
}

func TestRoundTripInsertAndFetch(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{})
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(1), "name": "Alice", "age": int64(30)}))

	docs, err := c.Fetch(ctx, c.Query())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0]["id"])
	assert.Equal(t, "Alice", docs[0]["name"])
	assert.Equal(t, int64(30), docs[0]["age"])
}

func TestPartitionLocalityAndCount(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{PartitionKey: "region"})
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(1), "region": "us", "name": "Alice"}))
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(2), "region": "us", "name": "Bob"}))
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(3), "region": "eu", "name": "Carol"}))

	usShard, err := c.shards.GetShard("us")
	require.NoError(t, err)
	euShard, err := c.shards.GetShard("eu")
	require.NoError(t, err)
	assert.Equal(t, 2, usShard.Metadata().DocumentCount)
	assert.Equal(t, 1, euShard.Metadata().DocumentCount)
	assert.Equal(t, 3, c.CountDocuments())
}

func TestInsertMissingPartitionKeyErrors(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{PartitionKey: "region"})
	err := c.Insert(context.Background(), wire.Document{"id": int64(1), "name": "Alice"})
	var pkErr *PartitionKeyNotFoundError
	assert.ErrorAs(t, err, &pkErr)
	assert.Equal(t, "region", pkErr.Field)
}

func TestInsertMissingIndexFieldErrors(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name"}})
	err := c.Insert(context.Background(), wire.Document{"id": int64(1), "age": int64(30)})
	var idxErr *IndexKeyNotFoundError
	assert.ErrorAs(t, err, &idxErr)
	assert.Equal(t, "name", idxErr.Field)
}

func TestIndexCoverage(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name"}})
	doc := wire.Document{"id": int64(1), "name": "Alice", "age": int64(30)}
	require.NoError(t, c.Insert(context.Background(), doc))

	recBytes, err := wire.Encode(doc, c.cfg.Format)
	require.NoError(t, err)

	payloads, ok := c.idx.Search("name", "Alice")
	require.True(t, ok)
	assert.Contains(t, payloads, recBytes)
}

func TestScenarioS1EqualityFilter(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name", "age"}})
	seedUsers(t, c)

	docs, err := c.Fetch(context.Background(), c.Query().Where(query.Eq("name", "Alice")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 5}, idsOf(t, docs))
}

func TestScenarioS2Between(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name", "age"}})
	seedUsers(t, c)

	docs, err := c.Fetch(context.Background(), c.Query().Where(query.Between("age", "30", "40")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3, 4}, idsOf(t, docs))
}

func TestScenarioS3StartsWith(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name", "age"}})
	seedUsers(t, c)

	docs, err := c.Fetch(context.Background(), c.Query().Where(query.StartsWith("name", "A")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 5}, idsOf(t, docs))
}

func TestScenarioS4Contains(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name", "age"}})
	seedUsers(t, c)

	docs, err := c.Fetch(context.Background(), c.Query().Where(query.Contains("name", "v")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4}, idsOf(t, docs))
}

func TestUpdateRewritesRecordAndIndex(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name"}})
	seedUsers(t, c)

	n, err := c.Update(context.Background(), []query.Predicate{query.Eq("name", "Bob")}, func(doc wire.Document) (wire.Document, error) {
		doc["name"] = "Robert"
		return doc, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := c.idx.Search("name", "Bob")
	assert.False(t, ok)
	payloads, ok := c.idx.Search("name", "Robert")
	require.True(t, ok)
	assert.Len(t, payloads, 1)

	docs, err := c.Fetch(context.Background(), c.Query().Where(query.Eq("id", "2")))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Robert", docs[0]["name"])
}

func TestUpdateWithNoMatchReturnsDocumentNotFound(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{})
	seedUsers(t, c)

	_, err := c.Update(context.Background(), []query.Predicate{query.Eq("name", "Ghost")}, func(d wire.Document) (wire.Document, error) {
		return d, nil
	})
	var notFound *DocumentNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteRemovesRecordAndIndexEntry(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{IndexFields: []string{"name"}})
	seedUsers(t, c)

	n, err := c.Delete(context.Background(), []query.Predicate{query.Eq("name", "Alice")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, c.CountDocuments())

	_, ok := c.idx.Search("name", "Alice")
	assert.False(t, ok)
}

func TestCreateIndexIsIdempotentAndTracksField(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{})
	c.CreateIndex("name")
	c.CreateIndex("name")
	assert.Equal(t, []string{"name"}, c.cfg.IndexFields)
	assert.True(t, c.idx.HasIndex("name"))
}

func TestCleanupEmptyShards(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{PartitionKey: "region"})
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(1), "region": "us"}))
	n, err := c.Delete(ctx, []query.Predicate{query.Eq("id", "1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := c.CleanupEmptyShards()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = c.shards.GetShard("us")
	assert.Error(t, err)
}

func TestRepartitionCollectionRoutesByNewKey(t *testing.T) {
	c := newUsersCollection(t, CollectionConfig{})
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(1), "region": "us"}))
	require.NoError(t, c.Insert(ctx, wire.Document{"id": int64(2), "region": "eu"}))

	// Before repartitioning both records live in the synthetic
	// "default" partition.
	defaultShard, err := c.shards.GetShard("default")
	require.NoError(t, err)
	assert.Equal(t, 2, defaultShard.Metadata().DocumentCount)

	require.NoError(t, c.SetPartitionKey("region"))
	require.NoError(t, c.RepartitionCollection(ctx))

	usShard, err := c.shards.GetShard("us")
	require.NoError(t, err)
	euShard, err := c.shards.GetShard("eu")
	require.NoError(t, err)
	assert.Equal(t, 1, usShard.Metadata().DocumentCount)
	assert.Equal(t, 1, euShard.Metadata().DocumentCount)
	assert.Equal(t, 2, c.CountDocuments())
}

func TestDropCollectionRemovesDirectory(t *testing.T) {
	e := newTestEngine(t)
	c, err := e.GetOrCreateCollection(CollectionConfig{Name: "Users"})
	require.NoError(t, err)
	require.NoError(t, c.Insert(context.Background(), wire.Document{"id": int64(1)}))

	require.NoError(t, e.DropCollection("Users"))
	_, err = e.Collection("Users")
	assert.Error(t, err)
	_, err = os.Stat(c.dir)
	assert.True(t, os.IsNotExist(err))
}
