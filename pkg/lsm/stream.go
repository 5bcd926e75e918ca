package lsm

import (
	"sync"

	"github.com/bobboyms/stonedb/pkg/types"
)

// StreamEventType classifies one change-data-capture event.
type StreamEventType uint8

const (
	StreamInsert StreamEventType = iota
	StreamModify
	StreamRemove
)

// StreamEvent is one CDC record: the old and new images around a single
// mutation, in the spirit of a DynamoDB stream record.
type StreamEvent struct {
	Seq       uint64
	Type      StreamEventType
	TableName string
	Key       types.Key
	OldImage  types.Item // nil on insert
	NewImage  types.Item // nil on remove
}

// streamBuffer is a fixed-capacity in-memory ring of recent StreamEvents
// per table (§6's streams/CDC module). It is not durable across restarts —
// consumers are expected to be near-real-time tailers, matching the
// "eventually retired" semantics a bounded change stream implies.
type streamBuffer struct {
	mu       sync.Mutex
	capacity int
	events   []StreamEvent
	start    int // index of the oldest event within events, once full
}

func newStreamBuffer(capacity int) *streamBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &streamBuffer{capacity: capacity}
}

func (b *streamBuffer) push(ev StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) < b.capacity {
		b.events = append(b.events, ev)
		return
	}
	b.events[b.start] = ev
	b.start = (b.start + 1) % b.capacity
}

// since returns every buffered event with Seq > afterSeq, oldest first.
func (b *streamBuffer) since(afterSeq uint64) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.events)
	out := make([]StreamEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := b.events[(b.start+i)%cap2(b.events, b.capacity)]
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out
}

func cap2(events []StreamEvent, capacity int) int {
	if len(events) < capacity {
		return len(events)
	}
	return capacity
}

// StreamSince returns every change event recorded for table since afterSeq
// (exclusive), oldest first. Returns nil if the table has no stream buffer
// (streams are only created for tables that opt in via EnableStream).
func (e *Engine) StreamSince(tableName string, afterSeq uint64) []StreamEvent {
	e.mu.RLock()
	buf := e.streams[tableName]
	e.mu.RUnlock()
	if buf == nil {
		return nil
	}
	return buf.since(afterSeq)
}

// EnableStream turns on CDC capture for tableName with the given buffered
// event capacity.
func (e *Engine) EnableStream(tableName string, capacity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.streams[tableName] = newStreamBuffer(capacity)
}

func (e *Engine) emitStreamEvent(tableName string, ev StreamEvent) {
	e.mu.RLock()
	buf := e.streams[tableName]
	e.mu.RUnlock()
	if buf == nil {
		return
	}
	buf.push(ev)
}
