// Package engine wires the codec, wire, shard, index, stats, and query
// packages into NyaruDB2's public surface: an Engine owns a directory
// of named Collections, each independently partitioned, indexed, and
// queried.
package engine

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/nyarudb/nyarudb2/pkg/log"
)

// Engine is the root handle for an on-disk NyaruDB2 database: a
// directory containing one subdirectory per collection.
type Engine struct {
	opts Options

	mu          sync.RWMutex
	collections map[string]*Collection
}

// New opens (creating if necessary) an Engine rooted at opts.Path.
func New(opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, &InvalidDocumentError{Reason: "engine path is empty"}
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, err
	}
	return &Engine{opts: opts, collections: make(map[string]*Collection)}, nil
}

// Collection returns the named collection's handle, or
// CollectionNotFoundError if GetOrCreateCollection hasn't been called
// for it yet this process.
func (e *Engine) Collection(name string) (*Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[name]
	if !ok {
		return nil, &CollectionNotFoundError{Name: name}
	}
	return c, nil
}

// GetOrCreateCollection returns the named collection, creating it with
// cfg on first use. On an already-open collection, cfg is ignored and
// the existing configuration stands — a collection's wire format and
// codec are fixed for its lifetime; use SetPartitionKey/CreateIndex to
// change the rest.
func (e *Engine) GetOrCreateCollection(cfg CollectionConfig) (*Collection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.collections[cfg.Name]; ok {
		return c, nil
	}
	c, err := newCollection(collectionDir(e.opts.Path, cfg.Name), cfg, e.opts)
	if err != nil {
		return nil, err
	}
	e.collections[cfg.Name] = c
	log.WithCollection(cfg.Name).Info().Str("partitionKey", cfg.PartitionKey).Strs("indexFields", cfg.IndexFields).Msg("collection opened")
	return c, nil
}

// ListCollections returns every open collection's name, sorted.
func (e *Engine) ListCollections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.collections))
	for name := range e.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DropCollection deletes a collection's on-disk files and forgets it.
func (e *Engine) DropCollection(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.collections[name]
	if !ok {
		return &CollectionNotFoundError{Name: name}
	}
	if err := c.Drop(); err != nil {
		return err
	}
	delete(e.collections, name)
	return nil
}

// Close stops every open collection's background compaction loop.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, c := range e.collections {
		if err := c.close(ctx); err != nil {
			return err
		}
		delete(e.collections, name)
	}
	return nil
}
