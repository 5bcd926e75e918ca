package lsm

import "sync/atomic"

// SeqTracker hands out the strictly increasing sequence numbers every
// Record carries (§3's "latest seq wins"), and tracks the highest sequence
// observed during WAL/manifest recovery so a fresh engine resumes counting
// from where it left off. Renamed/adapted from the teacher's lsn_tracker.go,
// which served the same role for its single-stream WAL LSNs.
type SeqTracker struct {
	seq atomic.Uint64
}

// Next allocates and returns the next sequence number.
func (t *SeqTracker) Next() uint64 {
	return t.seq.Add(1)
}

// Observe advances the tracker's floor to at least seq, used during
// recovery for every replayed WAL record and for the manifest's last
// checkpoint seq, so newly allocated sequence numbers never collide with
// anything already on disk.
func (t *SeqTracker) Observe(seq uint64) {
	for {
		cur := t.seq.Load()
		if seq <= cur {
			return
		}
		if t.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// Current returns the last sequence number handed out or observed.
func (t *SeqTracker) Current() uint64 {
	return t.seq.Load()
}
