// Package btree adapts the teacher's latch-crabbing B+Tree into a generic
// ordered map (Node[V]/BPlusTree[V]) so it can serve as the per-stripe
// memtable's in-memory index over *types.Record, instead of the
// heap-offset table it originally pointed at.
package btree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// Node is one B+Tree node. Leaves carry Values (the memtable's records);
// internal nodes carry only separator Keys and Children.
type Node[V any] struct {
	T        int
	Keys     []types.Comparable
	Values   []V
	Children []*Node[V]
	Leaf     bool
	N        int
	Next     *Node[V] // leaf chain, used by range scans
	mu       sync.RWMutex
}

func NewNode[V any](t int, leaf bool) *Node[V] {
	return &Node[V]{
		T:        t,
		Leaf:     leaf,
		Keys:     make([]types.Comparable, 0, 2*t-1),
		Values:   make([]V, 0, 2*t-1),
		Children: make([]*Node[V], 0, 2*t),
	}
}

func (n *Node[V]) Lock() {
	if n != nil {
		n.mu.Lock()
	}
}

func (n *Node[V]) Unlock() {
	if n != nil {
		n.mu.Unlock()
	}
}

func (n *Node[V]) RLock() {
	if n != nil {
		n.mu.RLock()
	}
}

func (n *Node[V]) RUnlock() {
	if n != nil {
		n.mu.RUnlock()
	}
}

// IsSafeForInsert reports whether n can take one more key without splitting.
func (n *Node[V]) IsSafeForInsert() bool { return n.N < 2*n.T-1 }

// IsSafeForDelete reports whether n can lose one key without borrow/merge.
func (n *Node[V]) IsSafeForDelete() bool { return n.N > n.T-1 }

func (n *Node[V]) IsFull() bool { return n.N == 2*n.T-1 }

func (n *Node[V]) Search(key types.Comparable) (*Node[V], bool) {
	i := 0
	for i < n.N && key.Compare(n.Keys[i]) >= 0 {
		i++
	}
	if n.Leaf {
		for j := 0; j < n.N; j++ {
			if key.Compare(n.Keys[j]) == 0 {
				return n, true
			}
		}
		return nil, false
	}
	return n.Children[i].Search(key)
}

func (n *Node[V]) findLeafLowerBound(key types.Comparable) (*Node[V], int) {
	i := sort.Search(n.N, func(i int) bool {
		return n.Keys[i].Compare(key) >= 0
	})
	if n.Leaf {
		return n, i
	}
	return n.Children[i].findLeafLowerBound(key)
}

// InsertNonFull inserts key/value into a subtree rooted at a non-full n.
func (n *Node[V]) InsertNonFull(key types.Comparable, value V, uniqueKey bool) error {
	i := n.N - 1

	if n.Leaf {
		idx := sort.Search(n.N, func(j int) bool {
			return n.Keys[j].Compare(key) >= 0
		})

		if idx < n.N && n.Keys[idx].Compare(key) == 0 {
			if uniqueKey {
				return &errors.DuplicateKeyError{Key: fmt.Sprintf("%v", key)}
			}
			n.Values[idx] = value
			return nil
		}

		n.Keys = append(n.Keys, nil)
		var zero V
		n.Values = append(n.Values, zero)
		copy(n.Keys[idx+1:], n.Keys[idx:])
		copy(n.Values[idx+1:], n.Values[idx:])

		n.Keys[idx] = key
		n.Values[idx] = value
		n.N++
		return nil
	}

	for i >= 0 && key.Compare(n.Keys[i]) < 0 {
		i--
	}
	i++

	if n.Children[i].N == 2*n.T-1 {
		n.SplitChild(i)
		if key.Compare(n.Keys[i]) >= 0 {
			i++
		}
	}
	return n.Children[i].InsertNonFull(key, value, uniqueKey)
}

// UpsertNonFull inserts or updates key in a subtree rooted at a non-full n,
// running fn against the existing value (if any) while the leaf is locked.
func (n *Node[V]) UpsertNonFull(key types.Comparable, fn func(oldValue V, exists bool) (newValue V, err error)) error {
	i := n.N - 1

	if n.Leaf {
		idx := sort.Search(n.N, func(j int) bool {
			return n.Keys[j].Compare(key) >= 0
		})

		if idx < n.N && n.Keys[idx].Compare(key) == 0 {
			newValue, err := fn(n.Values[idx], true)
			if err != nil {
				return err
			}
			n.Values[idx] = newValue
			return nil
		}

		var zero V
		newValue, err := fn(zero, false)
		if err != nil {
			return err
		}

		n.Keys = append(n.Keys, nil)
		n.Values = append(n.Values, zero)
		copy(n.Keys[idx+1:], n.Keys[idx:])
		copy(n.Values[idx+1:], n.Values[idx:])

		n.Keys[idx] = key
		n.Values[idx] = newValue
		n.N++
		return nil
	}

	for i >= 0 && key.Compare(n.Keys[i]) < 0 {
		i--
	}
	i++

	if n.Children[i].N == 2*n.T-1 {
		n.SplitChild(i)
		if key.Compare(n.Keys[i]) >= 0 {
			i++
		}
	}
	return n.Children[i].UpsertNonFull(key, fn)
}

func (n *Node[V]) SplitChild(i int) {
	t := n.T
	y := n.Children[i]
	z := NewNode[V](t, y.Leaf)

	if y.Leaf {
		mid := t - 1
		z.N = y.N - mid
		z.Keys = append(z.Keys, y.Keys[mid:]...)
		z.Values = append(z.Values, y.Values[mid:]...)

		y.Keys = y.Keys[:mid]
		y.Values = y.Values[:mid]
		y.N = mid

		z.Next = y.Next
		y.Next = z
	} else {
		mid := t - 1
		z.N = t - 1
		z.Keys = append(z.Keys, y.Keys[mid+1:]...)
		z.Children = append(z.Children, y.Children[mid+1:]...)

		upKey := y.Keys[mid]

		y.Keys = y.Keys[:mid]
		y.Children = y.Children[:mid+1]
		y.N = mid

		n.Keys = append(n.Keys, nil)
		copy(n.Keys[i+1:], n.Keys[i:])
		n.Keys[i] = upKey

		n.Children = append(n.Children, nil)
		copy(n.Children[i+2:], n.Children[i+1:])
		n.Children[i+1] = z
		n.N++
		return
	}

	n.Keys = append(n.Keys, nil)
	copy(n.Keys[i+1:], n.Keys[i:])
	n.Keys[i] = z.Keys[0]

	n.Children = append(n.Children, nil)
	copy(n.Children[i+2:], n.Children[i+1:])
	n.Children[i+1] = z
	n.N++
}

func (n *Node[V]) remove(key types.Comparable) bool {
	idx := sort.Search(n.N, func(i int) bool {
		return n.Keys[i].Compare(key) >= 0
	})

	if n.Leaf {
		if idx < n.N && n.Keys[idx].Compare(key) == 0 {
			n.Keys = append(n.Keys[:idx], n.Keys[idx+1:]...)
			n.Values = append(n.Values[:idx], n.Values[idx+1:]...)
			n.N--
			return true
		}
		return false
	}

	childIdx := idx
	if idx < n.N && n.Keys[idx].Compare(key) == 0 {
		childIdx = idx + 1
	}

	child := n.Children[childIdx]
	if child.N < n.T {
		n.fill(childIdx)
	}

	return n.removeRecursive(key)
}

func (n *Node[V]) removeRecursive(key types.Comparable) bool {
	idx := sort.Search(n.N, func(i int) bool {
		return n.Keys[i].Compare(key) >= 0
	})

	childIdx := idx
	if idx < n.N && n.Keys[idx].Compare(key) == 0 {
		childIdx = idx + 1
	}
	if childIdx > n.N {
		childIdx = n.N
	}

	ok := n.Children[childIdx].remove(key)
	if ok {
		n.fixSeparators()
	}
	return ok
}

func (n *Node[V]) fixSeparators() {
	if n.Leaf {
		return
	}
	for i := 0; i < n.N; i++ {
		curr := n.Children[i+1]
		for !curr.Leaf {
			curr = curr.Children[0]
		}
		if curr.N > 0 {
			n.Keys[i] = curr.Keys[0]
		}
	}
}

func (n *Node[V]) fill(i int) {
	if i != 0 && n.Children[i-1].N >= n.T {
		n.borrowFromPrev(i)
	} else if i != n.N && n.Children[i+1].N >= n.T {
		n.borrowFromNext(i)
	} else {
		if i != n.N {
			n.merge(i)
		} else {
			n.merge(i - 1)
		}
	}
}

func (n *Node[V]) borrowFromPrev(i int) {
	child := n.Children[i]
	sibling := n.Children[i-1]

	if child.Leaf {
		var zero V
		child.Keys = append([]types.Comparable{nil}, child.Keys...)
		child.Values = append([]V{zero}, child.Values...)
		child.Keys[0] = sibling.Keys[sibling.N-1]
		child.Values[0] = sibling.Values[sibling.N-1]
		child.N++

		sibling.Keys = sibling.Keys[:sibling.N-1]
		sibling.Values = sibling.Values[:sibling.N-1]
		sibling.N--

		n.Keys[i-1] = child.Keys[0]
	} else {
		child.Keys = append([]types.Comparable{nil}, child.Keys...)
		child.Children = append([]*Node[V]{nil}, child.Children...)
		child.Keys[0] = n.Keys[i-1]
		child.Children[0] = sibling.Children[sibling.N]
		child.N++

		n.Keys[i-1] = sibling.Keys[sibling.N-1]
		sibling.Keys = sibling.Keys[:sibling.N-1]
		sibling.Children = sibling.Children[:sibling.N]
		sibling.N--
	}
}

func (n *Node[V]) borrowFromNext(i int) {
	child := n.Children[i]
	sibling := n.Children[i+1]

	if child.Leaf {
		child.Keys = append(child.Keys, sibling.Keys[0])
		child.Values = append(child.Values, sibling.Values[0])
		child.N++

		sibling.Keys = append([]types.Comparable{}, sibling.Keys[1:]...)
		sibling.Values = append([]V{}, sibling.Values[1:]...)
		sibling.N--

		n.Keys[i] = sibling.Keys[0]
	} else {
		child.Keys = append(child.Keys, n.Keys[i])
		child.Children = append(child.Children, sibling.Children[0])
		child.N++

		n.Keys[i] = sibling.Keys[0]
		sibling.Keys = append([]types.Comparable{}, sibling.Keys[1:]...)
		sibling.Children = append([]*Node[V]{}, sibling.Children[1:]...)
		sibling.N--
	}
}

func (n *Node[V]) merge(i int) {
	child := n.Children[i]
	sibling := n.Children[i+1]

	if child.Leaf {
		child.Keys = append(child.Keys, sibling.Keys...)
		child.Values = append(child.Values, sibling.Values...)
		child.Next = sibling.Next
		child.N = len(child.Keys)
	} else {
		child.Keys = append(child.Keys, n.Keys[i])
		child.Keys = append(child.Keys, sibling.Keys...)
		child.Children = append(child.Children, sibling.Children...)
		child.N = len(child.Keys)
	}

	n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
	n.Children = append(n.Children[:i+1], n.Children[i+2:]...)
	n.N--
}

// Remove deletes key from the subtree rooted at n.
func (n *Node[V]) Remove(key types.Comparable) bool {
	return n.remove(key)
}

// FindLeafLowerBound returns the leaf and index where key would sit.
func (n *Node[V]) FindLeafLowerBound(key types.Comparable) (*Node[V], int) {
	return n.findLeafLowerBound(key)
}
