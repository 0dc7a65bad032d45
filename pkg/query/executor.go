package query

import (
	"sort"

	"github.com/nyarudb/nyarudb2/pkg/btree"
	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
	"github.com/nyarudb/nyarudb2/pkg/shard"
	"github.com/nyarudb/nyarudb2/pkg/wire"
)

// Execute runs plan against the collection's live index and shard
// state and returns a lazily-pulled iterator over matching records.
// Ordering: within one shard, records come out in shard insertion
// order; across shards, ascending shard id (a stable, deterministic
// order for a given snapshot of the data, without requiring a
// cross-shard merge). Index-driven plans order by
// ascending key, then insertion order within equal keys.
//
// collection labels the strategy counter and latency histogram this
// call publishes; Execute itself has no notion of collection identity
// beyond that.
func Execute(collection string, plan Plan, idx *index.Manager, shards *shard.Manager, format wire.Format) (Iterator, error) {
	timer := metrics.NewTimer()
	metrics.QueriesTotal.WithLabelValues(collection, plan.Strategy.String()).Inc()

	var it Iterator
	var err error
	switch plan.Strategy {
	case StrategyIndex:
		it, err = indexIterator(plan, idx, format)
	case StrategyPartition:
		it, err = shardsIterator(plan.ShardIDs, shards)
	default:
		it, err = scanIterator(shards)
	}
	if err != nil {
		return nil, err
	}

	it = filterIterator(it, func(doc wire.Document) bool {
		return matchesAll(doc, plan.Residual)
	})

	var count int
	it = countingIterator(it, &count)
	it = onCloseIterator(it, func() {
		timer.ObserveDurationVec(metrics.QueryDuration, collection, plan.Strategy.String())
		metrics.QueryResultsReturned.WithLabelValues(collection).Observe(float64(count))
	})
	return it, nil
}

func matchesAll(doc wire.Document, preds []Predicate) bool {
	for _, p := range preds {
		val, present := doc.Field(p.Field)
		str, ok := wire.CanonicalString(val)
		if !present {
			ok = false
		}
		if !p.Matches(str, ok) {
			return false
		}
	}
	return true
}

// Matches reports whether doc satisfies every predicate in preds,
// exported for callers (update/delete) that need to test a
// already-decoded record against a predicate set without going
// through a Plan.
func Matches(doc wire.Document, preds []Predicate) bool {
	return matchesAll(doc, preds)
}

// Limit wraps it so it yields at most n records; n < 0 means
// unbounded and returns it unchanged.
func Limit(it Iterator, n int) Iterator {
	return limitIterator(it, n)
}

func indexIterator(plan Plan, idx *index.Manager, format wire.Format) (Iterator, error) {
	var entries []btree.Entry
	switch plan.Driving.Op {
	case OpEq:
		if vals, ok := idx.Search(plan.Field, plan.Driving.Value); ok {
			entries = []btree.Entry{{Key: plan.Driving.Value, Values: vals}}
		}
	case OpIn:
		keys := append([]string(nil), plan.Driving.Values...)
		sort.Strings(keys)
		for _, k := range keys {
			if vals, ok := idx.Search(plan.Field, k); ok {
				entries = append(entries, btree.Entry{Key: k, Values: vals})
			}
		}
	default:
		low, high := rangeBounds(plan.Driving)
		entries = idx.RangeSearch(plan.Field, low, high)
	}

	sources := make([]Iterator, 0, len(entries))
	for _, e := range entries {
		docs, err := decodeAll(e.Values, format)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sliceIterator(docs))
	}
	return chainIterator(sources), nil
}

func shardsIterator(shardIDs []string, mgr *shard.Manager) (Iterator, error) {
	sources := make([]Iterator, 0, len(shardIDs))
	for _, id := range shardIDs {
		s, err := mgr.GetShard(id)
		if err != nil {
			continue // shard removed (e.g. by concurrent compaction) between plan and execute
		}
		docs, err := s.LoadAll()
		if err != nil {
			return nil, err
		}
		sources = append(sources, sliceIterator(docs))
	}
	return chainIterator(sources), nil
}

func scanIterator(mgr *shard.Manager) (Iterator, error) {
	infos := mgr.AllShardInfo()
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	sort.Strings(ids)
	return shardsIterator(ids, mgr)
}

func decodeAll(payloads [][]byte, format wire.Format) ([]wire.Document, error) {
	docs := make([]wire.Document, 0, len(payloads))
	for _, p := range payloads {
		doc, err := wire.Decode(p, format)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
