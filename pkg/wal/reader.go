package wal

import (
	"io"
	"os"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// Reader replays a ring-buffer WAL file for crash recovery.
type Reader struct {
	file *os.File
}

// NewReader opens path for recovery scanning.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "wal: failed to open %q for recovery", path)
	}
	return &Reader{file: f}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// RecoveryResult summarizes a completed scan: the records found in file
// order, the byte offset recovery stopped at (where the writer should
// resume), and the LSN the writer should assign next.
type RecoveryResult struct {
	Records    []Record
	StopOffset int64
	NextLSN    uint64
	TailOffset int64
}

// Recover scans a ringSize-byte ring from offset 0 and returns every
// valid record in file order, stopping at the first unwritten slot
// (lsn==0) or checksum failure, per §4.3.
func (r *Reader) Recover(ringSize int64) (RecoveryResult, error) {
	buf := make([]byte, ringSize)
	if _, err := io.ReadFull(r.file, buf); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return RecoveryResult{}, errors.Wrap(errors.IOError, err, "wal: failed to read ring buffer")
	}

	var (
		records []Record
		offset  int64
		maxLSN  uint64
	)
	for offset < ringSize {
		rec, n, ok, err := Decode(buf[offset:])
		if err != nil {
			return RecoveryResult{Records: records, StopOffset: offset, NextLSN: maxLSN + 1},
				errors.Wrap(errors.Corruption, err, "wal: recovery stopped at offset %d", offset)
		}
		if !ok {
			break
		}
		records = append(records, rec)
		if rec.LSN > maxLSN {
			maxLSN = rec.LSN
		}
		offset += int64(n)
	}

	return RecoveryResult{Records: records, StopOffset: offset, NextLSN: maxLSN + 1}, nil
}
