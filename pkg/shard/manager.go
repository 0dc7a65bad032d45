package shard

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/codec"
	"github.com/nyarudb/nyarudb2/pkg/log"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

const (
	// DefaultCompactionThreshold is the per-shard document count below
	// which a shard becomes a compaction candidate.
	DefaultCompactionThreshold = 100
	// DefaultCompactionInterval is how often the background compaction
	// loop looks for candidates.
	DefaultCompactionInterval = 60 * time.Second
)

// Manager owns every shard of one collection: it maps partition value
// to Shard, and runs the background compaction loop that merges small
// shards together. Loop shape (ticker + stop channel, started in the
// constructor, torn down by Close) follows the health-monitor pattern
// used elsewhere in this codebase's background workers.
//
// A compaction cycle's primary-shard rewrite and shard-list mutation
// race foreground appends unless serialized against them: mutator is
// the same lock the owning collection holds around Insert/Append, so
// runCompaction acquires it for the whole cycle rather than only the
// manager's own map lock.
type Manager struct {
	collection string
	dir        string
	codecKind  codec.Kind
	format     wire.Format
	indexFields func() []string
	mutator     sync.Locker

	threshold int
	interval  time.Duration

	mu     sync.RWMutex
	shards map[string]*Shard

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// Config configures a Manager at construction.
type Config struct {
	Collection            string
	Dir                   string
	Codec                 codec.Kind
	Format                wire.Format
	IndexFields           func() []string
	CompactionThreshold   int
	CompactionIntervalSec int
	// Mutator serializes a compaction cycle against the owning
	// collection's own mutating operations. A caller that embeds a
	// Manager without an enclosing collection (e.g. a standalone test)
	// may leave this nil; an internal mutex is used instead.
	Mutator sync.Locker
}

// NewManager creates a Manager, loads any shards already on disk under
// dir, and starts the background compaction loop.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.CompactionThreshold <= 0 {
		cfg.CompactionThreshold = DefaultCompactionThreshold
	}
	interval := DefaultCompactionInterval
	if cfg.CompactionIntervalSec > 0 {
		interval = time.Duration(cfg.CompactionIntervalSec) * time.Second
	}
	if cfg.IndexFields == nil {
		cfg.IndexFields = func() []string { return nil }
	}
	if cfg.Mutator == nil {
		cfg.Mutator = &sync.Mutex{}
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	m := &Manager{
		collection:  cfg.Collection,
		dir:         cfg.Dir,
		codecKind:   cfg.Codec,
		format:      cfg.Format,
		indexFields: cfg.IndexFields,
		mutator:     cfg.Mutator,
		threshold:   cfg.CompactionThreshold,
		interval:    interval,
		shards:      make(map[string]*Shard),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	if err := m.loadExisting(); err != nil {
		return nil, err
	}

	go m.compactionLoop()
	return m, nil
}

func (m *Manager) loadExisting() error {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != payloadExt {
			continue
		}
		id := e.Name()[:len(e.Name())-len(payloadExt)]
		s, err := Open(m.collection, m.dir, id, m.codecKind, m.format, m.indexFields())
		if err != nil {
			return err
		}
		m.shards[id] = s
		metrics.ShardsTotal.WithLabelValues(m.collection).Inc()
	}
	return nil
}

// GetOrCreateShard returns the shard for partitionValue, creating it
// (idempotently, under the manager's lock) if it doesn't exist yet.
func (m *Manager) GetOrCreateShard(partitionValue string) *Shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shards[partitionValue]; ok {
		return s
	}
	s := New(m.collection, m.dir, partitionValue, m.codecKind, m.format, m.indexFields())
	m.shards[partitionValue] = s
	metrics.ShardsTotal.WithLabelValues(m.collection).Inc()
	return s
}

// GetShard returns the shard for id, or NotFoundError.
func (m *Manager) GetShard(id string) (*Shard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shards[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return s, nil
}

// AllShards returns every shard, in no particular order.
func (m *Manager) AllShards() []*Shard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Shard, 0, len(m.shards))
	for _, s := range m.shards {
		out = append(out, s)
	}
	return out
}

// ShardInfo is an immutable metadata snapshot of one shard.
type ShardInfo struct {
	ID       string
	Metadata Metadata
}

// AllShardInfo returns a metadata snapshot for every shard.
func (m *Manager) AllShardInfo() []ShardInfo {
	shards := m.AllShards()
	out := make([]ShardInfo, 0, len(shards))
	for _, s := range shards {
		out = append(out, ShardInfo{ID: s.ID(), Metadata: s.Metadata()})
	}
	return out
}

// RemoveAllShards deletes every shard's files and clears the in-memory
// map, used by repartitioning and dropCollection.
func (m *Manager) RemoveAllShards() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.shards {
		if err := s.Remove(); err != nil {
			return err
		}
		delete(m.shards, id)
		metrics.ShardsTotal.WithLabelValues(m.collection).Dec()
	}
	return nil
}

// CleanupEmptyShards deletes shards whose documentCount is zero.
func (m *Manager) CleanupEmptyShards() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.shards {
		if s.Metadata().DocumentCount != 0 {
			continue
		}
		if err := s.Remove(); err != nil {
			return removed, err
		}
		delete(m.shards, id)
		metrics.ShardsTotal.WithLabelValues(m.collection).Dec()
		removed++
	}
	return removed, nil
}

// Close stops the compaction loop, waiting for any in-flight
// iteration to finish before returning.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.done) })
	select {
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) compactionLoop() {
	defer close(m.stopped)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.runCompaction(); err != nil {
				log.WithComponent("compaction").Warn().Err(err).Str("collection", m.collection).Msg("compaction cycle failed")
			}
		case <-m.done:
			return
		}
	}
}

// runCompaction runs one compaction cycle: gather shards under
// threshold ordered by createdAt, fold all but the oldest into it, and
// drop the absorbed shards. The whole cycle holds mutator, so the
// primary's read-modify-write and the shard-list removal never
// interleave with a foreground append into one of the candidates.
func (m *Manager) runCompaction() error {
	m.mutator.Lock()
	defer m.mutator.Unlock()

	timer := metrics.NewTimer()

	candidates := m.compactionCandidates()
	if len(candidates) < 2 {
		return nil
	}
	primary := candidates[0]
	absorbed := candidates[1:]

	combined, err := primary.RawBytes()
	if err != nil {
		return err
	}
	var extraCount int
	extraStats := make(map[string]FieldRange)
	var toRemove []*Shard

	for _, s := range absorbed {
		raw, err := s.RawBytes()
		if err != nil {
			log.WithComponent("compaction").Warn().Err(err).Str("shard", s.ID()).Msg("skip unreadable candidate")
			continue
		}
		combined = append(combined, raw...)
		meta := s.Metadata()
		extraCount += meta.DocumentCount
		for field, r := range meta.FieldStats {
			existing, ok := extraStats[field]
			if !ok {
				extraStats[field] = r
				continue
			}
			if r.Min < existing.Min {
				existing.Min = r.Min
			}
			if r.Max > existing.Max {
				existing.Max = r.Max
			}
			extraStats[field] = existing
		}
		toRemove = append(toRemove, s)
	}

	if err := primary.SetRawBytes(combined, extraCount, extraStats); err != nil {
		return err
	}

	m.mu.Lock()
	for _, s := range toRemove {
		if err := s.Remove(); err != nil {
			log.WithComponent("compaction").Warn().Err(err).Str("shard", s.ID()).Msg("failed removing absorbed shard files")
			continue
		}
		delete(m.shards, s.ID())
		metrics.ShardsTotal.WithLabelValues(m.collection).Dec()
	}
	m.mu.Unlock()

	metrics.CompactionCyclesTotal.WithLabelValues(m.collection, "merged").Inc()
	metrics.ShardsMergedTotal.WithLabelValues(m.collection).Add(float64(len(toRemove)))
	timer.ObserveDurationVec(metrics.CompactionDuration, m.collection)
	return nil
}

func (m *Manager) compactionCandidates() []*Shard {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []*Shard
	for _, s := range m.shards {
		if s.Metadata().DocumentCount < m.threshold {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Metadata().CreatedAt.Before(candidates[j].Metadata().CreatedAt)
	})
	return candidates
}
