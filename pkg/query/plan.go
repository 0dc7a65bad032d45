package query

import (
	"sort"
	"strings"

	"github.com/nyarudb/nyarudb2/pkg/index"
	"github.com/nyarudb/nyarudb2/pkg/stats"
)

// Strategy names how a Plan locates candidate records.
type Strategy int

const (
	// StrategyIndex probes a secondary index directly.
	StrategyIndex Strategy = iota
	// StrategyPartition restricts the scan to shards whose
	// partition-field range overlaps the predicate.
	StrategyPartition
	// StrategyScan reads every shard of the collection.
	StrategyScan
)

func (s Strategy) String() string {
	switch s {
	case StrategyIndex:
		return "index"
	case StrategyPartition:
		return "partition"
	case StrategyScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Plan is the planner's decision for one query: how to find candidate
// records, and the full predicate set to apply once they're decoded.
// Residual is deliberately the query's entire predicate list, not just
// the predicates the chosen strategy didn't satisfy: every strategy's
// narrowing is an optimization, never a substitute for the exact
// filter, so index/partition/scan plans are guaranteed to agree on the
// final result set (a query-equivalence property that would otherwise
// have to be proven strategy by strategy).
type Plan struct {
	Strategy Strategy
	Field    string // driving field for Index/Partition strategies
	Driving  Predicate
	ShardIDs []string // shards a StrategyPartition plan reads (nil reads none); StrategyScan ignores it and reads every shard
	Residual []Predicate
}

// sentinel bounds used to turn a one-sided comparison into an
// inclusive range for B-tree RangeSearch / shard min-max overlap
// checks. Canonical field values never contain these, since
// CanonicalString never emits non-scalar runes outside the BMP in
// ordinary data; they exist purely as "smaller/larger than anything"
// markers for string comparison.
const (
	minKeySentinel = ""
)

var maxKeySentinel = strings.Repeat(string(rune(0x10FFFF)), 8)

// eqClass groups operators for the tie-break rule "equality beats
// range": lower class wins regardless of estimated count.
func eqClass(op Op) int {
	switch op {
	case OpEq, OpIn:
		return 0
	default:
		return 1
	}
}

// BuildPlan selects a strategy for q following a three-step
// precedence: indexed predicate, then partition predicate, then full
// scan, each checked in order and only compared against candidates
// within the same step.
func BuildPlan(q *Query, idx *index.Manager, snap stats.Snapshot, partitionKey string) Plan {
	preds := q.Predicates()

	if best, ok := bestIndexedPredicate(preds, idx, snap); ok {
		return Plan{
			Strategy: StrategyIndex,
			Field:    best.Field,
			Driving:  best,
			Residual: preds,
		}
	}

	if p, ok := partitionPredicate(preds, partitionKey); ok {
		shardIDs := overlappingShards(snap, partitionKey, p)
		return Plan{
			Strategy: StrategyPartition,
			Field:    partitionKey,
			Driving:  p,
			ShardIDs: shardIDs,
			Residual: preds,
		}
	}

	return Plan{Strategy: StrategyScan, Residual: preds}
}

func bestIndexedPredicate(preds []Predicate, idx *index.Manager, snap stats.Snapshot) (Predicate, bool) {
	type candidate struct {
		pred     Predicate
		class    int
		estimate int
	}
	var candidates []candidate
	for _, p := range preds {
		if !p.Op.Indexable() || idx == nil || !idx.HasIndex(p.Field) {
			continue
		}
		candidates = append(candidates, candidate{
			pred:     p,
			class:    eqClass(p.Op),
			estimate: estimateSelectivity(snap, p),
		})
	}
	if len(candidates) == 0 {
		return Predicate{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.class != b.class {
			return a.class < b.class
		}
		if a.estimate != b.estimate {
			return a.estimate < b.estimate
		}
		return a.pred.Field < b.pred.Field
	})
	return candidates[0].pred, true
}

// estimateSelectivity returns the planner's guess at how many records
// a predicate will match, from indexStats' per-key document counts.
func estimateSelectivity(snap stats.Snapshot, p Predicate) int {
	is, ok := snap.Indexes[p.Field]
	if !ok {
		return 0
	}
	switch p.Op {
	case OpEq:
		return is.KeyCounts[p.Value]
	case OpIn:
		total := 0
		for _, v := range p.Values {
			total += is.KeyCounts[v]
		}
		return total
	default:
		low, high := rangeBounds(p)
		total := 0
		for k, c := range is.KeyCounts {
			if k >= low && k <= high {
				total += c
			}
		}
		return total
	}
}

// rangeBounds turns any indexable non-equality predicate into an
// inclusive [low, high] string range for RangeSearch / estimation.
func rangeBounds(p Predicate) (low, high string) {
	switch p.Op {
	case OpBetween:
		return p.Low, p.High
	case OpGreaterThan, OpGreaterOrEqual:
		return p.Value, maxKeySentinel
	case OpLessThan, OpLessOrEqual:
		return minKeySentinel, p.Value
	case OpStartsWith:
		return p.Value, p.Value + maxKeySentinel
	default:
		return minKeySentinel, maxKeySentinel
	}
}

func partitionPredicate(preds []Predicate, partitionKey string) (Predicate, bool) {
	if partitionKey == "" {
		return Predicate{}, false
	}
	for _, p := range preds {
		if p.Field == partitionKey {
			return p, true
		}
	}
	return Predicate{}, false
}

// overlappingShards restricts a partition scan to shards whose
// observed [min,max] for field could possibly contain a match,
// consulting shardStats rather than opening every shard file.
// Operators the overlap check can't bound (NotEqual, Contains) pass
// every shard through unfiltered rather than risk excluding one.
func overlappingShards(snap stats.Snapshot, field string, p Predicate) []string {
	var ids []string
	for _, s := range snap.Shards {
		r, ok := s.FieldRanges[field]
		if !ok {
			continue // shard has no observations for this field, nothing to match
		}
		if rangeOverlaps(r.Min, r.Max, p) {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func rangeOverlaps(min, max string, p Predicate) bool {
	switch p.Op {
	case OpEq:
		return min <= p.Value && p.Value <= max
	case OpGreaterThan:
		return max > p.Value
	case OpGreaterOrEqual:
		return max >= p.Value
	case OpLessThan:
		return min < p.Value
	case OpLessOrEqual:
		return min <= p.Value
	case OpBetween:
		return !(max < p.Low || min > p.High)
	case OpIn:
		for _, v := range p.Values {
			if min <= v && v <= max {
				return true
			}
		}
		return false
	default:
		// NotEqual, StartsWith, Contains: no sound way to exclude a
		// shard from a min/max pair alone.
		return true
	}
}
