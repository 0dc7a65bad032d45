package query

// Query is a conjunction of predicates against one collection.
// Where and WithLimit are its mutators; every Where call narrows the
// result set further (logical AND) — multiple Where calls on the same
// query always conjunct, never replace each other.
type Query struct {
	Collection string
	Limit      int // <0 means unbounded

	predicates []Predicate
}

// New starts an empty query over collection, with no bound on result
// count.
func New(collection string) *Query {
	return &Query{Collection: collection, Limit: -1}
}

// Where conjuncts pred onto the query and returns it, so calls chain:
// query.New("Users").Where(query.Eq("age", "30")).Where(...).
func (q *Query) Where(pred Predicate) *Query {
	q.predicates = append(q.predicates, pred)
	return q
}

// WithLimit caps the number of records the query yields.
func (q *Query) WithLimit(n int) *Query {
	q.Limit = n
	return q
}

// Predicates returns the query's conjuncted predicates, in the order
// they were added.
func (q *Query) Predicates() []Predicate {
	out := make([]Predicate, len(q.predicates))
	copy(out, q.predicates)
	return out
}
