// Package query implements NyaruDB2's predicate DSL, query planner,
// and streaming executor: construct predicates with Eq/Between/...,
// conjunct them on a Query, and Execute against a collection's index,
// shard, and stats state to get a lazily-pulled sequence of records.
package query

import "strings"

// Op identifies a predicate's comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpGreaterThan
	OpLessThan
	OpGreaterOrEqual
	OpLessOrEqual
	OpBetween
	OpIn
	OpStartsWith
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNotEq:
		return "notEq"
	case OpGreaterThan:
		return "gt"
	case OpLessThan:
		return "lt"
	case OpGreaterOrEqual:
		return "gte"
	case OpLessOrEqual:
		return "lte"
	case OpBetween:
		return "between"
	case OpIn:
		return "in"
	case OpStartsWith:
		return "startsWith"
	case OpContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Indexable reports whether an index lookup can narrow candidates for
// this operator, per the planner's step-1 eligibility rule. notEqual
// and contains can only ever be applied as a residual filter.
func (o Op) Indexable() bool {
	switch o {
	case OpEq, OpIn, OpBetween, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual, OpStartsWith:
		return true
	default:
		return false
	}
}

// Predicate is one comparison against a single field, evaluated
// against the canonical string form of that field's value (the same
// form index keys and shard field-stat bounds use), so an
// index-driven, partition-driven, or full-scan plan all agree on
// which records match.
type Predicate struct {
	Field string
	Op    Op

	Value     string   // OpEq, OpNotEq, OpGreaterThan/LessThan(+OrEqual), OpStartsWith, OpContains
	Low, High string   // OpBetween, inclusive both ends
	Values    []string // OpIn
}

// Eq builds an equality predicate.
func Eq(field, value string) Predicate { return Predicate{Field: field, Op: OpEq, Value: value} }

// NotEqual builds an inequality predicate.
func NotEqual(field, value string) Predicate {
	return Predicate{Field: field, Op: OpNotEq, Value: value}
}

// GreaterThan builds a strict lower-bound predicate.
func GreaterThan(field, value string) Predicate {
	return Predicate{Field: field, Op: OpGreaterThan, Value: value}
}

// LessThan builds a strict upper-bound predicate.
func LessThan(field, value string) Predicate {
	return Predicate{Field: field, Op: OpLessThan, Value: value}
}

// GreaterOrEqual builds an inclusive lower-bound predicate.
func GreaterOrEqual(field, value string) Predicate {
	return Predicate{Field: field, Op: OpGreaterOrEqual, Value: value}
}

// LessOrEqual builds an inclusive upper-bound predicate.
func LessOrEqual(field, value string) Predicate {
	return Predicate{Field: field, Op: OpLessOrEqual, Value: value}
}

// Between builds an inclusive range predicate.
func Between(field, low, high string) Predicate {
	return Predicate{Field: field, Op: OpBetween, Low: low, High: high}
}

// In builds a set-membership predicate.
func In(field string, values ...string) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// StartsWith builds a string-prefix predicate.
func StartsWith(field, prefix string) Predicate {
	return Predicate{Field: field, Op: OpStartsWith, Value: prefix}
}

// Contains builds a substring predicate. It is never indexable: a
// B-tree's sort order gives no purchase on "somewhere in the string".
func Contains(field, substr string) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: substr}
}

// Matches evaluates the predicate against val, the canonical string
// form of the field (ok reports whether the field was present at
// all). A missing field satisfies only NotEqual.
func (p Predicate) Matches(val string, ok bool) bool {
	if !ok {
		return p.Op == OpNotEq
	}
	switch p.Op {
	case OpEq:
		return val == p.Value
	case OpNotEq:
		return val != p.Value
	case OpGreaterThan:
		return val > p.Value
	case OpLessThan:
		return val < p.Value
	case OpGreaterOrEqual:
		return val >= p.Value
	case OpLessOrEqual:
		return val <= p.Value
	case OpBetween:
		return val >= p.Low && val <= p.High
	case OpIn:
		for _, v := range p.Values {
			if val == v {
				return true
			}
		}
		return false
	case OpStartsWith:
		return strings.HasPrefix(val, p.Value)
	case OpContains:
		return strings.Contains(val, p.Value)
	default:
		return false
	}
}
