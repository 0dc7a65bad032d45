// Package index implements NyaruDB2's secondary index subsystem: one
// named B-tree per indexed field, owned by a per-collection Manager.
// Operations on fields with no index are no-ops/empty-results rather
// than errors, so the query planner can fall through to a partition
// or full scan without special-casing unindexed predicates.
package index

import (
	"sync"

	"github.com/nyarudb/nyarudb2/pkg/btree"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
)

// Manager owns the named indexes of one collection.
type Manager struct {
	collection string
	degree     int

	mu      sync.RWMutex
	indexes map[string]*btree.BTree
}

// NewManager creates an empty index manager. degree is the minimum
// degree used for every index created through it.
func NewManager(collection string, degree int) *Manager {
	return &Manager{
		collection: collection,
		degree:     degree,
		indexes:    make(map[string]*btree.BTree),
	}
}

// CreateIndex is idempotent: calling it twice for the same field
// leaves the existing index (and its data) untouched.
func (m *Manager) CreateIndex(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[field]; ok {
		return
	}
	m.indexes[field] = btree.New(m.degree)
}

// HasIndex reports whether field has an index.
func (m *Manager) HasIndex(field string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[field]
	return ok
}

// Fields returns the names of every indexed field.
func (m *Manager) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.indexes))
	for f := range m.indexes {
		out = append(out, f)
	}
	return out
}

// Insert adds bytes under key in field's index. No-op if field isn't
// indexed.
func (m *Manager) Insert(field, key string, payload []byte) {
	idx := m.indexFor(field)
	if idx == nil {
		return
	}
	timer := metrics.NewTimer()
	idx.Insert(key, payload)
	timer.ObserveDurationVec(metrics.IndexInsertDuration, m.collection, field)
	metrics.IndexKeysTotal.WithLabelValues(m.collection, field).Set(float64(idx.Count()))
}

// Delete removes payload from key in field's index. No-op (returns
// false) if field isn't indexed.
func (m *Manager) Delete(field, key string, payload []byte) bool {
	idx := m.indexFor(field)
	if idx == nil {
		return false
	}
	removed := idx.Delete(key, payload)
	metrics.IndexKeysTotal.WithLabelValues(m.collection, field).Set(float64(idx.Count()))
	return removed
}

// Search returns the value list at key in field's index. Returns
// (nil, false) both when field isn't indexed and when key is absent;
// callers that need to distinguish "no index" from "no match" should
// check HasIndex first.
func (m *Manager) Search(field, key string) ([][]byte, bool) {
	idx := m.indexFor(field)
	if idx == nil {
		return nil, false
	}
	return idx.Search(key)
}

// RangeSearch returns every entry in field's index within [low, high].
// Returns nil if field isn't indexed.
func (m *Manager) RangeSearch(field, low, high string) []btree.Entry {
	idx := m.indexFor(field)
	if idx == nil {
		return nil
	}
	return idx.RangeSearch(low, high)
}

// AllEntries returns every entry of field's index in ascending key
// order, used by the stats engine to summarize key/document counts.
// Returns nil if field isn't indexed.
func (m *Manager) AllEntries(field string) []btree.Entry {
	idx := m.indexFor(field)
	if idx == nil {
		return nil
	}
	return idx.All()
}

// KeyCount returns the number of distinct keys held by field's index,
// used by the planner's selectivity estimate. Returns 0 if unindexed.
func (m *Manager) KeyCount(field string) int {
	idx := m.indexFor(field)
	if idx == nil {
		return 0
	}
	return idx.Count()
}

func (m *Manager) indexFor(field string) *btree.BTree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexes[field]
}
