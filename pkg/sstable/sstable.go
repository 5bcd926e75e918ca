// Package sstable implements the immutable, sorted SST file (§3/§5):
// prefix-compressed 4 KiB data blocks, an index block mapping each data
// block's first key to its file offset, one bloom filter per data block,
// and a 24-byte footer.
package sstable

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"sort"

	"github.com/bobboyms/stonedb/pkg/block"
	"github.com/bobboyms/stonedb/pkg/bloom"
	"github.com/bobboyms/stonedb/pkg/codec"
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

const footerSize = 4 + 8 + 8 + 4 // num_data_blocks, index_offset, bloom_offset, crc32c

// targetDataPayload bounds how many raw (pre-framing) entry bytes
// accumulate in one data block before it's flushed; it leaves headroom
// under block.Size's usable payload so the framed block never overflows.
// maxDataBlockRecords is the other half of §4.2's "100 records or 4 KiB,
// whichever hits first" rule — without it, a run of small records (well
// under the byte budget) would never close a block.
const targetDataPayload = 3800
const maxDataBlockRecords = 100

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type indexEntry struct {
	firstKey    []byte
	blockOffset int64
}

// Writer accumulates sorted records and produces one SST file.
type Writer struct {
	codec   block.Codec
	entries [][]byte // pending raw entry bytes for the open data block
	curKey  []byte   // last key written into the open data block
	curKeys [][]byte // keys seen in the open data block, for its bloom filter
	size    int

	dataBlocks []byte // finished, framed data blocks concatenated
	index      []indexEntry
	blooms     [][]byte // serialized bloom filter per finished data block
	blockID    uint64
}

// NewWriter creates a Writer using codec to frame each physical block
// (compression/encryption may be none).
func NewWriter(codec block.Codec) *Writer {
	return &Writer{codec: codec}
}

// Add appends rec to the SST being built. Records must be added in
// ascending key order (ties broken by descending seq, matching the
// memtable's iteration order) — Add does not re-sort.
func (w *Writer) Add(rec types.Record) error {
	keyBytes := rec.Key.Encode()
	valueBytes, err := codec.EncodeRecordValue(rec)
	if err != nil {
		return err
	}
	// Close the open block first when this entry (at most 12 bytes of
	// framing plus the full key and value) could take it past the budget.
	if len(w.entries) > 0 && w.size+12+len(keyBytes)+len(valueBytes) > targetDataPayload {
		if err := w.flushDataBlock(); err != nil {
			return err
		}
	}

	sharedLen := commonPrefixLen(w.curKey, keyBytes)
	unshared := keyBytes[sharedLen:]

	entry := make([]byte, 4+4+len(unshared)+4+len(valueBytes))
	binary.LittleEndian.PutUint32(entry[0:4], uint32(sharedLen))
	binary.LittleEndian.PutUint32(entry[4:8], uint32(len(unshared)))
	off := 8
	copy(entry[off:], unshared)
	off += len(unshared)
	binary.LittleEndian.PutUint32(entry[off:off+4], uint32(len(valueBytes)))
	off += 4
	copy(entry[off:], valueBytes)

	if len(w.entries) == 0 {
		w.index = append(w.index, indexEntry{firstKey: append([]byte(nil), keyBytes...), blockOffset: int64(len(w.dataBlocks))})
	}

	w.entries = append(w.entries, entry)
	w.curKeys = append(w.curKeys, keyBytes)
	w.curKey = keyBytes
	w.size += len(entry)

	if w.size >= targetDataPayload || len(w.entries) >= maxDataBlockRecords {
		return w.flushDataBlock()
	}
	return nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func (w *Writer) flushDataBlock() error {
	if len(w.entries) == 0 {
		return nil
	}
	raw := make([]byte, 0, w.size)
	for _, e := range w.entries {
		raw = append(raw, e...)
	}
	framed, err := w.codec.EncodeBlock(w.blockID, raw)
	if err != nil {
		return err
	}
	w.dataBlocks = append(w.dataBlocks, framed...)

	filter := bloom.New(len(w.curKeys))
	for _, k := range w.curKeys {
		filter.Add(k)
	}
	fb, err := filter.Bytes()
	if err != nil {
		return err
	}
	w.blooms = append(w.blooms, fb)

	w.blockID++
	w.entries = w.entries[:0]
	w.curKeys = w.curKeys[:0]
	w.curKey = nil
	w.size = 0
	return nil
}

// Finish flushes any pending data block and writes the complete SST file
// (data blocks, index block, bloom section, footer) to path.
func (w *Writer) Finish(path string) error {
	if err := w.flushDataBlock(); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(errors.IOError, err, "sstable: failed to create %q", path)
	}
	defer f.Close()

	if _, err := f.Write(w.dataBlocks); err != nil {
		return errors.Wrap(errors.IOError, err, "sstable: failed to write data blocks")
	}

	indexOffset := int64(len(w.dataBlocks))
	indexBuf := encodeIndex(w.index)
	if err := writeSection(f, indexBuf); err != nil {
		return err
	}

	bloomOffset := indexOffset + int64(len(indexBuf)) + 4
	bloomBuf := encodeBlooms(w.blooms)
	if err := writeSection(f, bloomBuf); err != nil {
		return err
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], uint32(len(w.index)))
	binary.LittleEndian.PutUint64(footer[4:12], uint64(indexOffset))
	binary.LittleEndian.PutUint64(footer[12:20], uint64(bloomOffset))
	sum := crc32.Checksum(footer[:20], castagnoli)
	binary.LittleEndian.PutUint32(footer[20:24], sum)

	if _, err := f.Write(footer); err != nil {
		return errors.Wrap(errors.IOError, err, "sstable: failed to write footer")
	}
	return f.Sync()
}

// writeSection writes a u32 length prefix followed by buf.
func writeSection(f *os.File, buf []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return errors.Wrap(errors.IOError, err, "sstable: failed to write section length")
	}
	if _, err := f.Write(buf); err != nil {
		return errors.Wrap(errors.IOError, err, "sstable: failed to write section")
	}
	return nil
}

func encodeIndex(entries []indexEntry) []byte {
	var buf []byte
	for _, e := range entries {
		var head [12]byte
		binary.LittleEndian.PutUint32(head[0:4], uint32(len(e.firstKey)))
		binary.LittleEndian.PutUint64(head[4:12], uint64(e.blockOffset))
		buf = append(buf, head[:]...)
		buf = append(buf, e.firstKey...)
	}
	return buf
}

func decodeIndex(buf []byte, n int) ([]indexEntry, error) {
	entries := make([]indexEntry, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off+12 > len(buf) {
			return nil, errors.New(errors.Corruption, "sstable: truncated index entry")
		}
		keyLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		blockOffset := int64(binary.LittleEndian.Uint64(buf[off+4 : off+12]))
		off += 12
		if off+keyLen > len(buf) {
			return nil, errors.New(errors.Corruption, "sstable: truncated index key")
		}
		key := append([]byte(nil), buf[off:off+keyLen]...)
		off += keyLen
		entries = append(entries, indexEntry{firstKey: key, blockOffset: blockOffset})
	}
	return entries, nil
}

func encodeBlooms(blooms [][]byte) []byte {
	var buf []byte
	for _, b := range blooms {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, b...)
	}
	return buf
}

func decodeBlooms(buf []byte, n int) ([]*bloom.Filter, error) {
	filters := make([]*bloom.Filter, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off+4 > len(buf) {
			return nil, errors.New(errors.Corruption, "sstable: truncated bloom entry")
		}
		l := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+l > len(buf) {
			return nil, errors.New(errors.Corruption, "sstable: truncated bloom bytes")
		}
		f, err := bloom.FromBytes(buf[off : off+l])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		off += l
	}
	return filters, nil
}

// Reader serves point and range reads against a finished SST file, with
// the index block and bloom filters cached in memory.
type Reader struct {
	file   *os.File
	codec  block.Codec
	hasSK  bool
	index  []indexEntry
	blooms []*bloom.Filter
}

// Open loads an SST's index and bloom section into memory for serving.
// hasSK must match the owning table's schema (whether sort keys are used).
func Open(path string, codec block.Codec, hasSK bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to open %q", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to stat %q", path)
	}
	if info.Size() < footerSize {
		f.Close()
		return nil, errors.New(errors.Corruption, "sstable: %q is too small to hold a footer", path)
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		f.Close()
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to read footer")
	}
	want := binary.LittleEndian.Uint32(footer[20:24])
	got := crc32.Checksum(footer[:20], castagnoli)
	if got != want {
		f.Close()
		return nil, errors.New(errors.ChecksumMismatch, "sstable: footer crc32c mismatch in %q", path)
	}
	numBlocks := int(binary.LittleEndian.Uint32(footer[0:4]))
	indexOffset := int64(binary.LittleEndian.Uint64(footer[4:12]))
	bloomOffset := int64(binary.LittleEndian.Uint64(footer[12:20]))

	indexBuf, err := readSection(f, indexOffset)
	if err != nil {
		f.Close()
		return nil, err
	}
	index, err := decodeIndex(indexBuf, numBlocks)
	if err != nil {
		f.Close()
		return nil, err
	}

	bloomBuf, err := readSection(f, bloomOffset)
	if err != nil {
		f.Close()
		return nil, err
	}
	blooms, err := decodeBlooms(bloomBuf, numBlocks)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{file: f, codec: codec, hasSK: hasSK, index: index, blooms: blooms}, nil
}

func readSection(f *os.File, offset int64) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], offset); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to read section length")
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, l)
	if _, err := f.ReadAt(buf, offset+4); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to read section")
	}
	return buf, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// blockFor returns the ordinal of the data block that may contain key,
// or -1 if key is before the file's first key.
func (r *Reader) blockFor(key []byte) int {
	i := sort.Search(len(r.index), func(i int) bool {
		return bytesCompare(r.index[i].firstKey, key) > 0
	}) - 1
	return i
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Get returns the record stored for the exact encoded key, if any.
func (r *Reader) Get(encodedKey []byte) (types.Record, bool, error) {
	blockIdx := r.blockFor(encodedKey)
	if blockIdx < 0 {
		return types.Record{}, false, nil
	}
	if !r.blooms[blockIdx].MayContain(encodedKey) {
		return types.Record{}, false, nil
	}

	records, err := r.readBlock(blockIdx)
	if err != nil {
		return types.Record{}, false, err
	}
	for _, rec := range records {
		if bytesCompare(rec.Key.Encode(), encodedKey) == 0 {
			return rec, true, nil
		}
	}
	return types.Record{}, false, nil
}

// ScanAll returns every record in the SST in key order; used by
// compaction and by full-table scans.
func (r *Reader) ScanAll() ([]types.Record, error) {
	var out []types.Record
	for i := range r.index {
		recs, err := r.readBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (r *Reader) readBlock(idx int) ([]types.Record, error) {
	buf := make([]byte, block.Size)
	if _, err := r.file.ReadAt(buf, r.index[idx].blockOffset); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "sstable: failed to read data block %d", idx)
	}
	raw, err := r.codec.DecodeBlock(uint64(idx), buf)
	if err != nil {
		return nil, err
	}

	var (
		records []types.Record
		curKey  []byte
		off     int
	)
	for off < len(raw) {
		if off+8 > len(raw) {
			break
		}
		sharedLen := int(binary.LittleEndian.Uint32(raw[off : off+4]))
		unsharedLen := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		off += 8
		if off+unsharedLen+4 > len(raw) {
			return nil, errors.New(errors.Corruption, "sstable: truncated entry in block %d", idx)
		}
		unshared := raw[off : off+unsharedLen]
		off += unsharedLen

		keyBytes := append(append([]byte(nil), curKey[:sharedLen]...), unshared...)
		curKey = keyBytes

		valueLen := int(binary.LittleEndian.Uint32(raw[off : off+4]))
		off += 4
		if off+valueLen > len(raw) {
			return nil, errors.New(errors.Corruption, "sstable: truncated value in block %d", idx)
		}
		valueBytes := raw[off : off+valueLen]
		off += valueLen

		key, ok := types.DecodeKey(keyBytes, r.hasSK)
		if !ok {
			return nil, errors.New(errors.Corruption, "sstable: failed to decode key in block %d", idx)
		}
		rec, err := codec.DecodeRecordValue(valueBytes, key)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
