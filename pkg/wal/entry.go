package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// EntryType tags what kind of mutation a record's payload encodes. The
// framing itself (RecordHeaderSize/CRC trailer below) doesn't care about
// this byte; it's carried inside Payload for pkg/lsm to interpret.
type EntryType uint8

const (
	EntryPut    EntryType = iota + 1 // 1: row put (including conditional puts)
	EntryDelete                      // 2: row delete
	EntryBegin                       // 3: transaction begin
	EntryCommit                      // 4: transaction commit
	EntryAbort                       // 5: transaction abort
)

// RecordHeaderSize is u64 lsn + u32 len (§4.1); the u32 CRC-32C trailer
// follows the payload.
const RecordHeaderSize = 8 + 4
const trailerSize = 4

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Record is one WAL entry: u64 lsn ‖ u32 len ‖ bytes ‖ u32 crc32c (§4.1).
// lsn 0 is reserved to mark an unwritten ring-buffer slot and is never
// assigned to a real record.
type Record struct {
	LSN     uint64
	Payload []byte
}

// EncodedSize is the total on-disk footprint of r.
func (r *Record) EncodedSize() int {
	return RecordHeaderSize + len(r.Payload) + trailerSize
}

// Encode serializes r into buf, which must be at least EncodedSize() long,
// and returns the number of bytes written.
func (r *Record) Encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(r.Payload)))
	copy(buf[RecordHeaderSize:], r.Payload)
	end := RecordHeaderSize + len(r.Payload)
	sum := crc32.Checksum(buf[:end], castagnoli)
	binary.LittleEndian.PutUint32(buf[end:end+trailerSize], sum)
	return end + trailerSize
}

// Decode parses a record starting at buf[0]. ok is false when buf's lsn
// field is zero (an unwritten ring-buffer slot) or the buffer is too
// short to hold a full header — the two conditions that silently stop
// WAL recovery (§4.3). A non-zero lsn with a bad CRC returns ok=true and
// a ChecksumMismatch error, which also stops recovery, but is reported
// so the caller can distinguish "end of log" from "log is corrupt".
func Decode(buf []byte) (rec Record, consumed int, ok bool, err error) {
	if len(buf) < RecordHeaderSize {
		return Record{}, 0, false, nil
	}
	lsn := binary.LittleEndian.Uint64(buf[0:8])
	if lsn == 0 {
		return Record{}, 0, false, nil
	}
	payloadLen := int(binary.LittleEndian.Uint32(buf[8:12]))
	end := RecordHeaderSize + payloadLen
	if payloadLen < 0 || end+trailerSize > len(buf) {
		return Record{}, 0, false, nil
	}
	want := binary.LittleEndian.Uint32(buf[end : end+trailerSize])
	got := crc32.Checksum(buf[:end], castagnoli)
	if got != want {
		return Record{}, 0, true, errors.New(errors.ChecksumMismatch,
			"wal: crc32c mismatch at lsn %d: want %08x got %08x", lsn, want, got)
	}
	payload := make([]byte, payloadLen)
	copy(payload, buf[RecordHeaderSize:end])
	return Record{LSN: lsn, Payload: payload}, end + trailerSize, true, nil
}
