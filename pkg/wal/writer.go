package wal

import (
	"os"
	"sync"
	"time"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// Writer is the fixed-size ring-buffer WAL (§4.1/§4.2): records are
// appended at a monotonic write cursor that wraps back to offset 0 when
// it reaches the ring's end, group-committed on a timer so concurrent
// callers share a single fsync.
type Writer struct {
	mu       sync.Mutex
	file     *os.File
	options  Options
	ringSize int64

	writeOffset int64  // next byte offset a record will be written at
	tailOffset  int64  // oldest byte offset still needed (not yet checkpointed)
	nextLSN     uint64 // LSN assigned to the next record
	wrapped     bool   // true once the cursor has wrapped at least once

	dirtyBytes int64
	done       chan struct{}
	ticker     *time.Ticker
	closed     bool
}

// Open creates or reopens a ring-buffer WAL file, sized to opts.RingSize.
func Open(opts Options) (*Writer, error) {
	f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "wal: failed to open %q", opts.Path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(errors.IOError, err, "wal: failed to stat %q", opts.Path)
	}
	if info.Size() < opts.RingSize {
		if err := f.Truncate(opts.RingSize); err != nil {
			f.Close()
			return nil, errors.Wrap(errors.IOError, err, "wal: failed to size ring buffer to %d bytes", opts.RingSize)
		}
	}

	w := &Writer{
		file:     f,
		options:  opts,
		ringSize: opts.RingSize,
		nextLSN:  1,
		done:     make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// Resume sets the writer's cursor and next LSN after a Reader.Recover
// scan, so new writes continue where the recovered log left off.
func (w *Writer) Resume(writeOffset int64, tailOffset int64, nextLSN uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writeOffset = writeOffset
	w.tailOffset = tailOffset
	w.nextLSN = nextLSN
}

// Checkpoint advances the tail offset, releasing ring space up to it for
// reuse. Callers invoke this once a manifest checkpoint record confirms
// every WAL record before offset has been durably flushed to an SST.
func (w *Writer) Checkpoint(offset int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tailOffset = offset
}

// WriteRecord appends payload as a new record and returns its assigned
// LSN. It group-commits under SyncBatch/SyncInterval policies and syncs
// immediately under SyncEveryWrite.
func (w *Writer) WriteRecord(payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errors.New(errors.InternalError, "wal: write on closed writer")
	}

	rec := Record{LSN: w.nextLSN, Payload: payload}
	size := int64(rec.EncodedSize())
	if size > w.ringSize {
		return 0, errors.New(errors.WALFull, "wal: record of %d bytes exceeds ring size %d", size, w.ringSize)
	}

	offset := w.writeOffset
	if offset+size > w.ringSize {
		// Wraparound: a record is never split across the physical end,
		// so the remainder of the ring is abandoned and the cursor
		// restarts at 0.
		offset = 0
	}
	if w.spaceWouldOverwriteUnreclaimed(offset, size) {
		return 0, errors.New(errors.WALFull, "wal: ring buffer full, no reclaimed space for a %d byte record", size)
	}

	bufPtr := AcquireBuffer()
	defer ReleaseBuffer(bufPtr)
	if cap(*bufPtr) < int(size) {
		*bufPtr = make([]byte, size)
	} else {
		*bufPtr = (*bufPtr)[:size]
	}
	n := rec.Encode(*bufPtr)

	if _, err := w.file.WriteAt((*bufPtr)[:n], offset); err != nil {
		return 0, errors.Wrap(errors.IOError, err, "wal: write at offset %d failed", offset)
	}

	w.writeOffset = offset + size
	if w.writeOffset >= w.ringSize {
		w.writeOffset = 0
	}
	w.wrapped = w.wrapped || offset == 0 && w.nextLSN > 1
	w.nextLSN++
	w.dirtyBytes += size

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	case SyncBatch:
		if w.dirtyBytes >= w.options.SyncBatchBytes {
			if err := w.syncLocked(); err != nil {
				return 0, err
			}
		}
	}

	return rec.LSN, nil
}

// spaceWouldOverwriteUnreclaimed reports whether writing size bytes at
// offset would cross into the [tailOffset, writeOffset) region the ring
// hasn't reclaimed yet via Checkpoint.
func (w *Writer) spaceWouldOverwriteUnreclaimed(offset, size int64) bool {
	if !w.wrapped && w.tailOffset == 0 {
		return false // first lap around an empty ring always has room
	}
	end := offset + size
	if offset <= w.tailOffset && end > w.tailOffset && offset != w.tailOffset {
		return true
	}
	return false
}

// Sync flushes and fsyncs the ring buffer file.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.file.Sync(); err != nil {
		return errors.Wrap(errors.IOError, err, "wal: fsync failed")
	}
	w.dirtyBytes = 0
	return nil
}

// Close stops background sync and closes the ring buffer file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
