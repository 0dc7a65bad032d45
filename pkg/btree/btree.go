// Package btree implements the duplicate-preserving B-tree backing
// NyaruDB2's secondary indexes: a generic-degree tree keyed by the
// canonical string form of an indexed field, where each key maps to
// an ordered, multi-value list of record payloads rather than a
// single slot. Node/child bookkeeping follows the arena-free,
// pointer-linked shape used by the retrieved pack's sharded B-tree
// (StunDB's bptree), adapted from a hash-sharded wrapper over unique
// single-value keys to one unsharded tree whose keys carry duplicate
// lists.
package btree

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

const defaultDegree = 2

// Entry is one key's materialized payload list, returned by Search
// and RangeSearch.
type Entry struct {
	Key    string
	Values [][]byte
}

type nodeEntry struct {
	key    string
	values [][]byte
}

type node struct {
	leaf     bool
	entries  []nodeEntry
	children []*node
}

// BTree is a single, unsharded B-tree of minimum degree t (t >= 2):
// every non-root node holds between t-1 and 2t-1 keys, all leaves sit
// at the same depth, and keys within a node are kept sorted.
type BTree struct {
	mu     sync.RWMutex
	root   *node
	degree int
}

// New creates an empty tree with the given minimum degree. Degrees
// below 2 are raised to 2, the smallest degree for which the B-tree
// invariants are meaningful.
func New(degree int) *BTree {
	if degree < defaultDegree {
		degree = defaultDegree
	}
	return &BTree{degree: degree, root: &node{leaf: true}}
}

// Insert adds payload under key. If key already exists, payload is
// appended to its value list; insertion order among equal keys is
// preserved.
func (t *BTree) Insert(key string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := t.root
	if len(root.entries) == 2*t.degree-1 {
		newRoot := &node{leaf: false, children: []*node{root}}
		t.splitChild(newRoot, 0)
		t.root = newRoot
		t.insertNonFull(newRoot, key, payload)
		return
	}
	t.insertNonFull(root, key, payload)
}

func (t *BTree) insertNonFull(n *node, key string, payload []byte) {
	i := searchIndex(n.entries, key)
	if i < len(n.entries) && n.entries[i].key == key {
		n.entries[i].values = append(n.entries[i].values, payload)
		return
	}
	if n.leaf {
		n.entries = append(n.entries, nodeEntry{})
		copy(n.entries[i+1:], n.entries[i:])
		n.entries[i] = nodeEntry{key: key, values: [][]byte{payload}}
		return
	}
	if len(n.children[i].entries) == 2*t.degree-1 {
		t.splitChild(n, i)
		switch {
		case key == n.entries[i].key:
			n.entries[i].values = append(n.entries[i].values, payload)
			return
		case key > n.entries[i].key:
			i++
		}
	}
	t.insertNonFull(n.children[i], key, payload)
}

// splitChild splits the full child at n.children[i] around its median
// entry, promoting that entry into n.
func (t *BTree) splitChild(n *node, i int) {
	child := n.children[i]
	mid := t.degree - 1
	median := child.entries[mid]

	right := &node{leaf: child.leaf}
	right.entries = append(right.entries, child.entries[mid+1:]...)
	child.entries = child.entries[:mid]

	if !child.leaf {
		right.children = append(right.children, child.children[mid+1:]...)
		child.children = child.children[:mid+1]
	}

	n.entries = append(n.entries, nodeEntry{})
	copy(n.entries[i+1:], n.entries[i:])
	n.entries[i] = median

	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = right
}

// Search returns the value list stored at key, if any.
func (t *BTree) Search(key string) ([][]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	for {
		i := searchIndex(n.entries, key)
		if i < len(n.entries) && n.entries[i].key == key {
			return n.entries[i].values, true
		}
		if n.leaf {
			return nil, false
		}
		n = n.children[i]
	}
}

// RangeSearch returns every entry whose key falls within [low, high]
// inclusive, in ascending key order.
func (t *BTree) RangeSearch(low, high string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		for i, e := range n.entries {
			if !n.leaf && e.key >= low {
				walk(n.children[i])
			}
			if e.key >= low && e.key <= high {
				out = append(out, Entry{Key: e.key, Values: e.values})
			}
			if e.key > high {
				return
			}
		}
		if !n.leaf {
			walk(n.children[len(n.entries)])
		}
	}
	walk(t.root)
	return out
}

// All returns every entry in the tree, in ascending key order.
func (t *BTree) All() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		for i, e := range n.entries {
			if !n.leaf {
				walk(n.children[i])
			}
			out = append(out, Entry{Key: e.key, Values: e.values})
		}
		if !n.leaf {
			walk(n.children[len(n.entries)])
		}
	}
	walk(t.root)
	return out
}

// Delete removes the first occurrence of payload from key's value
// list. If the list becomes empty, the key is removed from the tree
// structurally, preserving B-tree shape invariants via borrow/merge.
// Reports whether payload was found.
func (t *BTree) Delete(key string, payload []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	emptied, found := trimValue(t.root, key, payload)
	if !found {
		return false
	}
	if emptied {
		t.deleteKey(t.root, key)
		if !t.root.leaf && len(t.root.entries) == 0 {
			t.root = t.root.children[0]
		}
	}
	return true
}

// trimValue removes payload from key's value list without altering
// tree shape, reporting whether the list is now empty and whether key
// was found at all.
func trimValue(n *node, key string, payload []byte) (emptied bool, found bool) {
	i := searchIndex(n.entries, key)
	if i < len(n.entries) && n.entries[i].key == key {
		vals := n.entries[i].values
		for j, v := range vals {
			if bytes.Equal(v, payload) {
				vals = append(vals[:j], vals[j+1:]...)
				break
			}
		}
		n.entries[i].values = vals
		return len(vals) == 0, true
	}
	if n.leaf {
		return false, false
	}
	return trimValue(n.children[i], key, payload)
}

// deleteKey removes key from the subtree rooted at n, assuming key is
// present there. It follows the standard predecessor/successor/merge
// strategy so every visited node keeps at least t-1 keys afterward.
func (t *BTree) deleteKey(n *node, key string) {
	i := searchIndex(n.entries, key)
	if i < len(n.entries) && n.entries[i].key == key {
		if n.leaf {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return
		}
		switch {
		case len(n.children[i].entries) > t.minKeys(t.degree):
			pred := maxEntry(n.children[i])
			n.entries[i] = pred
			t.deleteKey(n.children[i], pred.key)
		case len(n.children[i+1].entries) > t.minKeys(t.degree):
			succ := minEntry(n.children[i+1])
			n.entries[i] = succ
			t.deleteKey(n.children[i+1], succ.key)
		default:
			t.mergeChildren(n, i)
			t.deleteKey(n.children[i], key)
		}
		return
	}
	if n.leaf {
		return
	}
	idx := t.ensureChildHasMinKeys(n, i)
	t.deleteKey(n.children[idx], key)
}

func (t *BTree) minKeys(degree int) int { return degree - 1 }

// ensureChildHasMinKeys guarantees n.children[idx] holds more than the
// minimum number of keys before a recursive delete visits it,
// borrowing from a sibling or merging as needed. Returns the index of
// the child to descend into, which shifts left by one when idx was
// merged into its left sibling.
func (t *BTree) ensureChildHasMinKeys(n *node, idx int) int {
	child := n.children[idx]
	if len(child.entries) > t.minKeys(t.degree) {
		return idx
	}

	switch {
	case idx > 0 && len(n.children[idx-1].entries) > t.minKeys(t.degree):
		left := n.children[idx-1]
		child.entries = append([]nodeEntry{n.entries[idx-1]}, child.entries...)
		n.entries[idx-1] = left.entries[len(left.entries)-1]
		left.entries = left.entries[:len(left.entries)-1]
		if !child.leaf {
			moved := left.children[len(left.children)-1]
			left.children = left.children[:len(left.children)-1]
			child.children = append([]*node{moved}, child.children...)
		}
		return idx
	case idx < len(n.children)-1 && len(n.children[idx+1].entries) > t.minKeys(t.degree):
		right := n.children[idx+1]
		child.entries = append(child.entries, n.entries[idx])
		n.entries[idx] = right.entries[0]
		right.entries = right.entries[1:]
		if !child.leaf {
			moved := right.children[0]
			right.children = right.children[1:]
			child.children = append(child.children, moved)
		}
		return idx
	case idx < len(n.children)-1:
		t.mergeChildren(n, idx)
		return idx
	default:
		t.mergeChildren(n, idx-1)
		return idx - 1
	}
}

// mergeChildren folds n.children[i], n.entries[i], and
// n.children[i+1] into a single node at n.children[i].
func (t *BTree) mergeChildren(n *node, i int) {
	left := n.children[i]
	right := n.children[i+1]

	left.entries = append(left.entries, n.entries[i])
	left.entries = append(left.entries, right.entries...)
	if !left.leaf {
		left.children = append(left.children, right.children...)
	}

	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	n.children = append(n.children[:i+1], n.children[i+2:]...)
}

func maxEntry(n *node) nodeEntry {
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	return n.entries[len(n.entries)-1]
}

func minEntry(n *node) nodeEntry {
	for !n.leaf {
		n = n.children[0]
	}
	return n.entries[0]
}

// searchIndex returns the smallest index i such that entries[i].key >=
// key, or len(entries) if no such index exists.
func searchIndex(entries []nodeEntry, key string) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].key >= key
	})
}

// Count returns the total number of keys (not values) in the tree.
func (t *BTree) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return countKeys(t.root)
}

func countKeys(n *node) int {
	if n == nil {
		return 0
	}
	count := len(n.entries)
	for _, c := range n.children {
		count += countKeys(c)
	}
	return count
}

// Degree reports the tree's minimum degree, mostly useful for tests
// and diagnostics.
func (t *BTree) Degree() int {
	return t.degree
}

func (t *BTree) String() string {
	return fmt.Sprintf("btree(degree=%d, keys=%d)", t.degree, t.Count())
}
