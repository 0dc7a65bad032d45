package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/log"
	"github.com/nyarudb/nyarudb2/pkg/query"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/nyarudb/nyarudb2/pkg/stats"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

// Collection is one named, partitioned, optionally indexed document
// set. All mutating methods (Insert, BulkInsert, Update, Delete,
// CreateIndex, SetPartitionKey, RepartitionCollection, Drop) are
// serialized against each other by mu, the collection mutator; reads
// (Fetch, FetchStream, CountDocuments, the stats getters) take a
// shared lock and may run concurrently with each other.
type Collection struct {
	dir string

	mu  sync.RWMutex
	cfg CollectionConfig

	shards *shard.Manager
	idx    *index.Manager
	stats  *stats.Engine

	// trackedFields is read by the shard manager whenever it creates
	// or opens a shard, which happens inside Insert, BulkInsert and
	// RepartitionCollection while the collection mutator is held by
	// this goroutine, so it's kept out of mu entirely rather than risk
	// a self-deadlock on re-entrant RLock.
	trackedFields atomic.Value // []string

	opTimeout time.Duration
}

// trackedFieldsFor is the set of fields worth a shard's own min/max
// bookkeeping: the partition key (consulted by the partition-scan
// strategy's shard overlap check) plus every secondary-indexed field.
func trackedFieldsFor(cfg CollectionConfig) []string {
	seen := make(map[string]bool, len(cfg.IndexFields)+1)
	var out []string
	if cfg.PartitionKey != "" {
		seen[cfg.PartitionKey] = true
		out = append(out, cfg.PartitionKey)
	}
	for _, f := range cfg.IndexFields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func newCollection(dir string, cfg CollectionConfig, opts Options) (*Collection, error) {
	cfg = cfg.withDefaults(opts)
	if cfg.Name == "" {
		return nil, &InvalidDocumentError{Reason: "collection name is empty"}
	}

	c := &Collection{
		dir:       dir,
		cfg:       cfg,
		opTimeout: opts.OperationTimeout,
	}
	c.setTrackedFields(trackedFieldsFor(cfg))

	sm, err := shard.NewManager(shard.Config{
		Collection:            cfg.Name,
		Dir:                   dir,
		Codec:                 cfg.Codec,
		Format:                cfg.Format,
		IndexFields:           c.trackedFieldsSnapshot,
		CompactionThreshold:   opts.CompactionThreshold,
		CompactionIntervalSec: opts.CompactionIntervalSec,
		Mutator:               &c.mu,
	})
	if err != nil {
		return nil, err
	}
	c.shards = sm

	c.idx = index.NewManager(cfg.Name, DefaultIndexDegree)
	for _, field := range cfg.IndexFields {
		c.idx.CreateIndex(field)
	}
	if err := c.backfillIndexesFromDisk(); err != nil {
		return nil, err
	}

	c.stats = stats.NewEngine(cfg.Name)
	c.refreshStatsLocked()
	return c, nil
}

func (c *Collection) setTrackedFields(fields []string) {
	c.trackedFields.Store(append([]string(nil), fields...))
}

func (c *Collection) trackedFieldsSnapshot() []string {
	v, _ := c.trackedFields.Load().([]string)
	return v
}

// backfillIndexesFromDisk rebuilds every configured index from shards
// already on disk: secondary indexes live only in memory, so a
// reopened collection otherwise starts with empty indexes despite
// having live documents.
func (c *Collection) backfillIndexesFromDisk() error {
	if len(c.cfg.IndexFields) == 0 {
		return nil
	}
	for _, s := range c.shards.AllShards() {
		docs, err := s.LoadAll()
		if err != nil {
			return err
		}
		for _, doc := range docs {
			recBytes, err := wire.Encode(doc, c.cfg.Format)
			if err != nil {
				return err
			}
			c.indexRecord(recBytes)
		}
	}
	return nil
}

// Name returns the collection's name.
func (c *Collection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Name
}

func (c *Collection) checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Op: op}
		}
		return &CancelledError{Op: op}
	default:
		return nil
	}
}

func (c *Collection) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

// Insert encodes doc, routes it to its partition's shard, appends it
// there, and inserts it into every indexed field's B-tree.
func (c *Collection) Insert(ctx context.Context, doc wire.Document) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.checkCtx(ctx, "insert"); err != nil {
		return err
	}
	if doc == nil {
		return &InvalidDocumentError{Reason: "nil document"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.insertLocked(doc); err != nil {
		return err
	}
	c.refreshStatsLocked()
	return nil
}

// BulkInsert inserts every document under a single acquisition of the
// collection mutator. It stops at the first failure; documents already
// appended before the failing one remain committed, matching the
// per-record atomicity the shard layer already guarantees (there is
// no cross-record transaction to roll back).
func (c *Collection) BulkInsert(ctx context.Context, docs []wire.Document) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.checkCtx(ctx, "bulkInsert"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		if doc == nil {
			return &InvalidDocumentError{Reason: "nil document"}
		}
		if err := c.checkCtx(ctx, "bulkInsert"); err != nil {
			return err
		}
		if err := c.insertLocked(doc); err != nil {
			return err
		}
	}
	c.refreshStatsLocked()
	return nil
}

func (c *Collection) insertLocked(doc wire.Document) error {
	recBytes, err := wire.Encode(doc, c.cfg.Format)
	if err != nil {
		return err
	}

	partitionValue, err := c.partitionValueFor(recBytes)
	if err != nil {
		return err
	}
	if err := c.checkIndexFields(recBytes); err != nil {
		return err
	}

	s := c.shards.GetOrCreateShard(partitionValue)
	if err := s.Append(doc); err != nil {
		return err
	}
	c.indexRecord(recBytes)
	return nil
}

// partitionValueFor extracts the collection's partition key from an
// encoded record, returning "default" when no partition key is
// configured. An absent key or one holding a non-scalar value are both
// PartitionKeyNotFoundError: a query's shard routing has no use for
// either case.
func (c *Collection) partitionValueFor(recBytes []byte) (string, error) {
	if c.cfg.PartitionKey == "" {
		return "default", nil
	}
	val, ok, err := wire.ExtractField(recBytes, c.cfg.PartitionKey, c.cfg.Format)
	if err != nil {
		var notScalar *wire.FieldNotScalar
		if errors.As(err, &notScalar) {
			return "", &shard.PartitionKeyNotFoundError{Field: c.cfg.PartitionKey}
		}
		return "", err
	}
	if !ok {
		return "", &shard.PartitionKeyNotFoundError{Field: c.cfg.PartitionKey}
	}
	return val, nil
}

// checkIndexFields verifies every declared index field is present and
// scalar in recBytes, matching partitionValueFor's treatment of a
// non-scalar value as equivalent to absence.
func (c *Collection) checkIndexFields(recBytes []byte) error {
	for _, field := range c.cfg.IndexFields {
		_, ok, err := wire.ExtractField(recBytes, field, c.cfg.Format)
		if err != nil {
			var notScalar *wire.FieldNotScalar
			if errors.As(err, &notScalar) {
				return &IndexKeyNotFoundError{Field: field}
			}
			return err
		}
		if !ok {
			return &IndexKeyNotFoundError{Field: field}
		}
	}
	return nil
}

func (c *Collection) indexRecord(recBytes []byte) {
	for _, field := range c.cfg.IndexFields {
		if val, ok, err := wire.ExtractField(recBytes, field, c.cfg.Format); err == nil && ok {
			c.idx.Insert(field, val, recBytes)
		}
	}
}

func (c *Collection) unindexRecord(recBytes []byte) {
	for _, field := range c.cfg.IndexFields {
		if val, ok, err := wire.ExtractField(recBytes, field, c.cfg.Format); err == nil && ok {
			c.idx.Delete(field, val, recBytes)
		}
	}
}

// Update applies patch to every record matching match, rewriting each
// touched shard once via SaveAll. It returns the number of records
// updated, or DocumentNotFoundError if none matched.
func (c *Collection) Update(ctx context.Context, match []query.Predicate, patch func(wire.Document) (wire.Document, error)) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.checkCtx(ctx, "update"); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	updated := 0
	for _, s := range c.shards.AllShards() {
		if err := c.checkCtx(ctx, "update"); err != nil {
			return updated, err
		}
		docs, err := s.LoadAll()
		if err != nil {
			return updated, err
		}
		changed := false
		out := make([]wire.Document, 0, len(docs))
		for _, doc := range docs {
			if !query.Matches(doc, match) {
				out = append(out, doc)
				continue
			}
			oldBytes, err := wire.Encode(doc, c.cfg.Format)
			if err != nil {
				return updated, err
			}
			newDoc, err := patch(doc)
			if err != nil {
				return updated, err
			}
			newBytes, err := wire.Encode(newDoc, c.cfg.Format)
			if err != nil {
				return updated, err
			}
			c.unindexRecord(oldBytes)
			c.indexRecord(newBytes)
			out = append(out, newDoc)
			changed = true
			updated++
		}
		if changed {
			if err := s.SaveAll(out); err != nil {
				return updated, err
			}
		}
	}
	if updated == 0 {
		return 0, &DocumentNotFoundError{Collection: c.cfg.Name}
	}
	c.refreshStatsLocked()
	return updated, nil
}

// Delete removes every record matching match. It returns the number of
// records removed, or DocumentNotFoundError if none matched.
func (c *Collection) Delete(ctx context.Context, match []query.Predicate) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.checkCtx(ctx, "delete"); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for _, s := range c.shards.AllShards() {
		if err := c.checkCtx(ctx, "delete"); err != nil {
			return deleted, err
		}
		docs, err := s.LoadAll()
		if err != nil {
			return deleted, err
		}
		changed := false
		out := make([]wire.Document, 0, len(docs))
		for _, doc := range docs {
			if !query.Matches(doc, match) {
				out = append(out, doc)
				continue
			}
			recBytes, err := wire.Encode(doc, c.cfg.Format)
			if err != nil {
				return deleted, err
			}
			c.unindexRecord(recBytes)
			changed = true
			deleted++
		}
		if changed {
			if err := s.SaveAll(out); err != nil {
				return deleted, err
			}
		}
	}
	if deleted == 0 {
		return 0, &DocumentNotFoundError{Collection: c.cfg.Name}
	}
	c.refreshStatsLocked()
	return deleted, nil
}

// Query starts an empty query bound to this collection.
func (c *Collection) Query() *query.Query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return query.New(c.cfg.Name)
}

// Fetch plans and runs q, returning every matching record.
func (c *Collection) Fetch(ctx context.Context, q *query.Query) ([]wire.Document, error) {
	it, err := c.FetchStream(ctx, q)
	if err != nil {
		return nil, err
	}
	return query.Collect(it)
}

// FetchStream plans and runs q, returning a lazily-pulled iterator
// over matching records capped at q.Limit.
func (c *Collection) FetchStream(ctx context.Context, q *query.Query) (query.Iterator, error) {
	if err := c.checkCtx(ctx, "fetch"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	plan := query.BuildPlan(q, c.idx, c.stats.Snapshot(), c.cfg.PartitionKey)
	it, err := query.Execute(c.cfg.Name, plan, c.idx, c.shards, c.cfg.Format)
	if err != nil {
		return nil, err
	}
	return query.Limit(it, q.Limit), nil
}

// CreateIndex declares field indexed, idempotently. Existing records
// are not backfilled: an index only covers records inserted after
// creation, matching the B-tree's own creation-time emptiness.
func (c *Collection) CreateIndex(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx.CreateIndex(field)
	hasField := false
	for _, f := range c.cfg.IndexFields {
		if f == field {
			hasField = true
			break
		}
	}
	if !hasField {
		c.cfg.IndexFields = append(c.cfg.IndexFields, field)
	}
	c.setTrackedFields(trackedFieldsFor(c.cfg))
	c.refreshStatsLocked()
}

// SetPartitionKey changes the field future inserts route on. Existing
// shards are left as-is; call RepartitionCollection to re-route
// already-stored records under the new key.
func (c *Collection) SetPartitionKey(field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.PartitionKey = field
	c.setTrackedFields(trackedFieldsFor(c.cfg))
	return nil
}

// RepartitionCollection rewrites every record into the shard its
// current partition-key value routes to, under the collection's
// present PartitionKey.
func (c *Collection) RepartitionCollection(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.checkCtx(ctx, "repartitionCollection"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var all []wire.Document
	for _, s := range c.shards.AllShards() {
		docs, err := s.LoadAll()
		if err != nil {
			return err
		}
		all = append(all, docs...)
	}

	if err := c.shards.RemoveAllShards(); err != nil {
		return err
	}

	for _, doc := range all {
		recBytes, err := wire.Encode(doc, c.cfg.Format)
		if err != nil {
			return err
		}
		partitionValue, err := c.partitionValueFor(recBytes)
		if err != nil {
			return err
		}
		s := c.shards.GetOrCreateShard(partitionValue)
		if err := s.Append(doc); err != nil {
			return err
		}
	}

	log.WithCollection(c.cfg.Name).Info().Str("partitionKey", c.cfg.PartitionKey).Int("documents", len(all)).Msg("repartitioned collection")
	c.refreshStatsLocked()
	return nil
}

// Drop stops the collection's background compaction loop, removes
// every shard file belonging to it, and removes its directory. Closing
// the compaction loop must happen before the collection mutator is
// acquired: an in-flight compaction cycle blocks on that same mutator,
// and Close waits for the cycle to finish.
func (c *Collection) Drop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.shards.Close(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.shards.RemoveAllShards(); err != nil {
		return err
	}
	if err := os.Remove(c.dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CountDocuments returns the sum of documentCount over every shard.
func (c *Collection) CountDocuments() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, info := range c.shards.AllShardInfo() {
		total += info.Metadata.DocumentCount
	}
	return total
}

// GetIndexStats returns the current stats snapshot's per-field index
// summaries.
func (c *Collection) GetIndexStats() map[string]stats.IndexStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Snapshot().Indexes
}

// GetShardStats returns the current stats snapshot's per-shard
// summaries.
func (c *Collection) GetShardStats() []stats.ShardStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Snapshot().Shards
}

// CleanupEmptyShards deletes shards whose documentCount is zero.
func (c *Collection) CleanupEmptyShards() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.shards.CleanupEmptyShards()
	if err != nil {
		return n, err
	}
	c.refreshStatsLocked()
	return n, nil
}

func (c *Collection) refreshStatsLocked() {
	c.stats.Recompute(c.shards.AllShardInfo(), c.idx)
}

// RefreshStats recomputes the collection's stats snapshot out of band
// from any write, used by a periodic poller to keep the exported
// Prometheus gauges current even for a collection that hasn't
// mutated recently.
func (c *Collection) RefreshStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshStatsLocked()
}

// StatsCollector returns the collection's stats.Engine, which
// implements prometheus.Collector, for a caller that wants to
// register per-collection gauges with its own registry.
func (c *Collection) StatsCollector() *stats.Engine {
	return c.stats
}

// close stops the collection's background compaction loop.
func (c *Collection) close(ctx context.Context) error {
	return c.shards.Close(ctx)
}

func collectionDir(root, name string) string {
	return filepath.Join(root, name)
}
