package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultOptions(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func TestCollectionNotFoundBeforeCreation(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Collection("Users")
	var notFound *CollectionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetOrCreateCollectionIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	c1, err := e.GetOrCreateCollection(CollectionConfig{Name: "Users"})
	require.NoError(t, err)
	c2, err := e.GetOrCreateCollection(CollectionConfig{Name: "Users", PartitionKey: "region"})
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	// The second call's config is ignored for an already-open collection.
	assert.Equal(t, "", c1.cfg.PartitionKey)
}

func TestListCollectionsIsSortedAndReflectsDrop(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetOrCreateCollection(CollectionConfig{Name: "Widgets"})
	require.NoError(t, err)
	_, err = e.GetOrCreateCollection(CollectionConfig{Name: "Accounts"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Accounts", "Widgets"}, e.ListCollections())

	require.NoError(t, e.DropCollection("Widgets"))
	assert.Equal(t, []string{"Accounts"}, e.ListCollections())

	_, err = e.Collection("Widgets")
	assert.Error(t, err)
}

func TestDropUnknownCollectionErrors(t *testing.T) {
	e := newTestEngine(t)
	err := e.DropCollection("Ghost")
	var notFound *CollectionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
