package lsm

import (
	"github.com/bobboyms/stonedb/pkg/btree"
	"github.com/bobboyms/stonedb/pkg/types"
)

// memtableRecords performs a full in-order traversal of a stripe's
// memtable, walking the B+Tree's leaf linked list (Node.Next) rather than
// repeatedly re-descending from the root. Used by flush and by
// Scan/Query's in-memory pass.
func memtableRecords(tree *btree.BPlusTree[*types.Record]) []*types.Record {
	if tree == nil {
		return nil
	}
	var out []*types.Record
	node, idx := tree.FindLeafLowerBound(nil)
	for node != nil {
		for i := idx; i < node.N; i++ {
			out = append(out, node.Values[i])
		}
		next := node.Next
		node.RUnlock()
		node = next
		idx = 0
		if node != nil {
			node.RLock()
		}
	}
	return out
}

// mergeRecordStreams merges several already-sorted-by-encoded-key record
// slices (memtable + each SST, newest source first) into one sequence with
// only the newest (highest Seq) record surviving per key, per §3's
// latest-seq-wins rule. Sources must each be supplied oldest-value-loses,
// i.e. callers pass memtable first, then SSTs newest-to-oldest; a record
// replaces an earlier-seen one for the same key only when its Seq is
// strictly higher, so on equal Seq the earlier source wins.
func mergeRecordStreams(sources ...[]*types.Record) []*types.Record {
	best := make(map[string]*types.Record)
	var order []string
	for _, src := range sources {
		for _, rec := range src {
			k := string(rec.Key.Encode())
			if existing, ok := best[k]; !ok {
				best[k] = rec
				order = append(order, k)
			} else if rec.Seq > existing.Seq {
				best[k] = rec
			}
		}
	}
	out := make([]*types.Record, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, best[k])
	}
	sortRecordsByKey(out)
	return out
}

func sortRecordsByKey(recs []*types.Record) {
	// insertion sort over the whole slice; callers pass flush batches,
	// compaction merges and complete Query/Scan result sets.
	for i := 1; i < len(recs); i++ {
		j := i
		for j > 0 && compareKeys(recs[j-1].Key, recs[j].Key) > 0 {
			recs[j-1], recs[j] = recs[j], recs[j-1]
			j--
		}
	}
}

func compareKeys(a, b types.Key) int {
	ae := types.EncodedKey(a.Encode())
	be := types.EncodedKey(b.Encode())
	return ae.Compare(be)
}
