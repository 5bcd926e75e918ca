package lsm

import (
	"os"

	"github.com/bobboyms/stonedb/pkg/btree"
	"github.com/bobboyms/stonedb/pkg/sstable"
	"github.com/bobboyms/stonedb/pkg/types"
)

// flush drains a stripe's memtable into a new immutable SST, registers it
// with the manifest, and replaces the in-memory memtable with an empty one.
// Triggered inline once a stripe's memtable crosses FlushThreshold or
// MemtableRecordThreshold; if that leaves the stripe holding at least
// CompactionSSTThreshold SSTs, a synchronous compaction runs before
// returning (§4.5).
func (e *Engine) flush(stripe int) error {
	st := e.stripes[stripe]

	st.mu.Lock()
	if st.memBytes < e.opts.FlushThreshold && st.memCount < e.opts.MemtableRecordThreshold {
		st.mu.Unlock()
		return nil // another flush already won the race
	}
	oldMem := st.mem
	st.mem = btree.NewTree[*types.Record](btreeOrder)
	st.memBytes = 0
	st.memCount = 0
	st.mu.Unlock()

	records := memtableRecords(oldMem)
	if len(records) == 0 {
		return nil
	}
	sortRecordsByKey(records)

	sstID := e.nextSstID.Add(1) - 1
	path := sstPath(e.opts.Dir, sstID)
	w := sstable.NewWriter(e.opts.Codec)
	for _, rec := range records {
		if err := w.Add(*rec); err != nil {
			return err
		}
	}
	if err := w.Finish(path); err != nil {
		return err
	}

	reader, err := sstable.Open(path, e.opts.Codec, true)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.sstReaders = append([]*sstable.Reader{reader}, st.sstReaders...)
	st.mu.Unlock()

	if err := e.mf.AddSst(stripe, sstID, 0); err != nil {
		return err
	}
	e.metrics.FlushesTotal.Inc()

	var maxSeq uint64
	for _, rec := range records {
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}
	if err := e.mf.Checkpoint(0, maxSeq); err != nil {
		return err
	}

	if e.opts.CompactionEnabled {
		st.mu.RLock()
		sstCount := len(st.sstReaders)
		st.mu.RUnlock()
		if sstCount >= e.opts.CompactionSSTThreshold {
			return e.compactBounded(stripe)
		}
	}
	return nil
}

// compactBounded runs Compact for stripe, holding a slot in compactSem so
// at most MaxConcurrentCompactions stripes compact at once.
func (e *Engine) compactBounded(stripe int) error {
	e.compactSem <- struct{}{}
	defer func() { <-e.compactSem }()
	return e.Compact(stripe)
}

// Compact merges every SST currently held by stripe into a single new SST,
// dropping superseded versions and tombstones that no surviving reader can
// still need (§5's compaction). It runs synchronously, either from flush
// once the stripe holds CompactionSSTThreshold SSTs or when called directly;
// stonedb does not run a background compaction scheduler.
func (e *Engine) Compact(stripe int) error {
	st := e.stripes[stripe]

	st.mu.Lock()
	readers := append([]*sstable.Reader(nil), st.sstReaders...)
	st.mu.Unlock()
	if len(readers) < 2 {
		return nil
	}

	sources := make([][]*types.Record, 0, len(readers))
	for _, r := range readers {
		recs, err := r.ScanAll()
		if err != nil {
			return err
		}
		ptrs := make([]*types.Record, len(recs))
		for i := range recs {
			rc := recs[i]
			ptrs[i] = &rc
		}
		sources = append(sources, ptrs)
	}
	merged := mergeRecordStreams(sources...)

	live := merged[:0:0]
	var dropped int
	for _, rec := range merged {
		if rec.IsTombstone() {
			dropped++
			continue
		}
		live = append(live, rec)
	}

	sstID := e.nextSstID.Add(1) - 1
	path := sstPath(e.opts.Dir, sstID)
	w := sstable.NewWriter(e.opts.Codec)
	for _, rec := range live {
		if err := w.Add(*rec); err != nil {
			return err
		}
	}
	if err := w.Finish(path); err != nil {
		return err
	}
	newReader, err := sstable.Open(path, e.opts.Codec, true)
	if err != nil {
		return err
	}

	st.mu.Lock()
	oldReaders := st.sstReaders
	st.sstReaders = []*sstable.Reader{newReader}
	st.mu.Unlock()

	for _, r := range oldReaders {
		r.Close()
	}

	if err := e.mf.AddSst(stripe, sstID, 1); err != nil {
		return err
	}
	e.metrics.CompactionsTotal.Inc()
	e.metrics.TombstonesDropped.Add(float64(dropped))

	var reclaimed int64
	for _, oldInfo := range e.mf.State().SstablesForStripe(stripe) {
		if oldInfo.ID != sstID {
			if err := e.mf.RemoveSst(stripe, oldInfo.ID, oldInfo.Level); err != nil {
				return err
			}
			oldPath := sstPath(e.opts.Dir, oldInfo.ID)
			if fi, err := os.Stat(oldPath); err == nil {
				reclaimed += fi.Size()
			}
			os.Remove(oldPath)
		}
	}
	if fi, err := os.Stat(path); err == nil {
		reclaimed -= fi.Size()
	}
	if reclaimed > 0 {
		e.metrics.BytesReclaimed.Add(float64(reclaimed))
	}
	return nil
}
