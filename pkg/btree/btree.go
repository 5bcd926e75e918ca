package btree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// BPlusTree is a concurrent, latch-crabbed B+Tree ordered map. stonedb
// instantiates it as BPlusTree[*types.Record] for each of the 256 memtable
// stripes (§3/§4.4).
type BPlusTree[V any] struct {
	T         int
	Root      *Node[V]
	UniqueKey bool // true rejects duplicate keys instead of overwriting
	mu        sync.RWMutex
}

// NewTree creates a tree that overwrites on duplicate keys (the memtable's
// mode: a later Put/Delete for the same encoded key replaces the earlier
// one's Value pointer).
func NewTree[V any](t int) *BPlusTree[V] {
	return &BPlusTree[V]{
		T:    t,
		Root: NewNode[V](t, true),
	}
}

// NewUniqueTree creates a tree whose Insert rejects duplicate keys with a
// DuplicateKeyError. stonedb's memtables use NewTree and Replace instead.
func NewUniqueTree[V any](t int) *BPlusTree[V] {
	return &BPlusTree[V]{
		T:         t,
		Root:      NewNode[V](t, true),
		UniqueKey: true,
	}
}

// Insert adds key/value, honoring UniqueKey.
func (b *BPlusTree[V]) Insert(key types.Comparable, value V) error {
	return b.insertHelper(key, value, b.UniqueKey)
}

// Replace unconditionally sets key's value, ignoring UniqueKey — used by
// the memtable, where a newer sequence number always supersedes the old
// record regardless of index uniqueness.
func (b *BPlusTree[V]) Replace(key types.Comparable, value V) error {
	return b.Upsert(key, func(oldValue V, exists bool) (V, error) {
		return value, nil
	})
}

// Upsert runs fn against key's current value (if any) while the leaf is
// latched, and stores whatever fn returns.
func (b *BPlusTree[V]) Upsert(key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	return b.upsertHelper(key, fn)
}

func (b *BPlusTree[V]) insertHelper(key types.Comparable, value V, uniqueKey bool) error {
	return b.Upsert(key, func(oldValue V, exists bool) (V, error) {
		if exists && uniqueKey {
			var zero V
			return zero, &errors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
		}
		return value, nil
	})
}

func (b *BPlusTree[V]) upsertHelper(key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode[V](b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends the tree splitting full children preemptively,
// using latch crabbing: a child is locked before its parent is released.
// curr must already be locked by the caller.
func (b *BPlusTree[V]) upsertTopDown(curr *Node[V], key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)
			if key.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.UpsertNonFull(key, fn)
}

// Search finds key and returns the leaf holding it. The leaf's latch is
// released before Search returns, so the caller holds no lock on it (kept
// for parity with the original API; prefer Get for read access).
func (b *BPlusTree[V]) Search(key types.Comparable) (*Node[V], bool) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr, true
		}
	}
	return nil, false
}

// Get returns key's value, thread-safe via latch coupling.
func (b *BPlusTree[V]) Get(key types.Comparable) (V, bool) {
	var zero V
	if b == nil {
		return zero, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return zero, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return zero, false
}

// FindLeafLowerBound finds the leaf and index a range scan should start
// at for key (or the tree's first entry when key is nil). The returned
// node is RLocked; the caller must RUnlock it.
func (b *BPlusTree[V]) FindLeafLowerBound(key types.Comparable) (*Node[V], int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if key == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool {
				return curr.Keys[i].Compare(key) >= 0
			})
		}

		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if key == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool {
			return curr.Keys[i].Compare(key) >= 0
		})
	}

	return curr, idx
}

func (b *BPlusTree[V]) findLeafLowerBound(key types.Comparable) (*Node[V], int) {
	node, idx := b.FindLeafLowerBound(key)
	if node != nil {
		node.RUnlock()
	}
	return node, idx
}

// Delete removes key from the tree, rebalancing as needed.
func (b *BPlusTree[V]) Delete(key types.Comparable) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Root.remove(key)
}
