package query

import "github.com/nyarudb/nyarudb2/pkg/wire"

// Iterator is a pull-style source of decoded records, grounded on the
// retrieved pack's bundoc collection iterator composition
// (Iterator/FilterIterator/SkipIterator/LimitIterator): callers pull
// one record at a time. Execute decodes every candidate shard's or
// index key's records when it is called, so the iterator hands out
// already-decoded records; filtering and limiting happen per pull,
// but decoding does not. Next returns (doc, true, nil) while records remain,
// (zero, false, nil) at a clean end, or (zero, false, err) on
// failure, after which the iterator must not be pulled again.
type Iterator interface {
	Next() (wire.Document, bool, error)
}

// IteratorFunc adapts a plain closure to an Iterator.
type IteratorFunc func() (wire.Document, bool, error)

func (f IteratorFunc) Next() (wire.Document, bool, error) { return f() }

// sliceIterator walks a pre-decoded slice, used for one shard's or one
// index key's already-materialized record list.
func sliceIterator(docs []wire.Document) Iterator {
	i := 0
	return IteratorFunc(func() (wire.Document, bool, error) {
		if i >= len(docs) {
			return nil, false, nil
		}
		d := docs[i]
		i++
		return d, true, nil
	})
}

// chainIterator pulls each source in order, exhausting one before
// advancing to the next.
func chainIterator(sources []Iterator) Iterator {
	i := 0
	return IteratorFunc(func() (wire.Document, bool, error) {
		for i < len(sources) {
			doc, ok, err := sources[i].Next()
			if err != nil {
				return nil, false, err
			}
			if ok {
				return doc, true, nil
			}
			i++
		}
		return nil, false, nil
	})
}

// filterIterator yields only records for which keep returns true.
func filterIterator(src Iterator, keep func(wire.Document) bool) Iterator {
	return IteratorFunc(func() (wire.Document, bool, error) {
		for {
			doc, ok, err := src.Next()
			if err != nil || !ok {
				return nil, ok, err
			}
			if keep(doc) {
				return doc, true, nil
			}
		}
	})
}

// limitIterator yields at most n records before reporting end of
// stream, used by fetch-style callers that only need a bounded page.
func limitIterator(src Iterator, n int) Iterator {
	if n < 0 {
		return src
	}
	remaining := n
	return IteratorFunc(func() (wire.Document, bool, error) {
		if remaining <= 0 {
			return nil, false, nil
		}
		doc, ok, err := src.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		remaining--
		return doc, true, nil
	})
}

// countingIterator increments *count for every record yielded,
// without otherwise altering the stream.
func countingIterator(src Iterator, count *int) Iterator {
	return IteratorFunc(func() (wire.Document, bool, error) {
		doc, ok, err := src.Next()
		if ok {
			*count++
		}
		return doc, ok, err
	})
}

// onCloseIterator calls onClose exactly once, the first time src
// reports end-of-stream or an error, so a caller can publish
// end-to-end latency/result-count metrics without needing to know in
// advance how many records a query will yield.
func onCloseIterator(src Iterator, onClose func()) Iterator {
	done := false
	return IteratorFunc(func() (wire.Document, bool, error) {
		doc, ok, err := src.Next()
		if !ok && !done {
			done = true
			onClose()
		}
		return doc, ok, err
	})
}

// Collect drains an iterator into a slice, for callers that want the
// whole result set rather than a stream (engine.fetch vs
// engine.fetchStream).
func Collect(it Iterator) ([]wire.Document, error) {
	var out []wire.Document
	for {
		doc, ok, err := it.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, doc)
	}
}
