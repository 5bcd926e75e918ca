// Package manifest implements the LSM catalog: a second ring-buffer log
// (reusing pkg/wal's framing) of typed variant records describing which
// SSTs exist, which stripe owns which SST, and where the last checkpoint
// landed (§5).
package manifest

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/wal"
)

// VariantKind tags a manifest record's payload shape.
type VariantKind uint8

const (
	VariantAddSst VariantKind = iota + 1
	VariantRemoveSst
	VariantCheckpoint
	VariantAssignStripe
)

// Variant is one manifest record, decoded from its wal.Record payload.
type Variant struct {
	Kind VariantKind

	// AddSst / RemoveSst
	Stripe int
	SstID  uint64
	Level  int

	// Checkpoint
	WALOffset int64
	Seq       uint64

	// AssignStripe
	TableName string
}

// Encode serializes v to a payload byte slice suitable for wal.Writer.WriteRecord.
func (v *Variant) Encode() []byte {
	switch v.Kind {
	case VariantAddSst, VariantRemoveSst:
		buf := make([]byte, 1+4+8+4)
		buf[0] = byte(v.Kind)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(v.Stripe))
		binary.LittleEndian.PutUint64(buf[5:13], v.SstID)
		binary.LittleEndian.PutUint32(buf[13:17], uint32(v.Level))
		return buf
	case VariantCheckpoint:
		buf := make([]byte, 1+8+8)
		buf[0] = byte(v.Kind)
		binary.LittleEndian.PutUint64(buf[1:9], uint64(v.WALOffset))
		binary.LittleEndian.PutUint64(buf[9:17], v.Seq)
		return buf
	case VariantAssignStripe:
		name := []byte(v.TableName)
		buf := make([]byte, 1+4+4+len(name))
		buf[0] = byte(v.Kind)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(v.Stripe))
		binary.LittleEndian.PutUint32(buf[5:9], uint32(len(name)))
		copy(buf[9:], name)
		return buf
	default:
		return []byte{byte(v.Kind)}
	}
}

// Decode parses a manifest payload back into a Variant.
func Decode(buf []byte) (Variant, error) {
	if len(buf) < 1 {
		return Variant{}, errors.New(errors.ManifestCorruption, "manifest: empty record")
	}
	kind := VariantKind(buf[0])
	switch kind {
	case VariantAddSst, VariantRemoveSst:
		if len(buf) < 1+4+8+4 {
			return Variant{}, errors.New(errors.ManifestCorruption, "manifest: truncated AddSst/RemoveSst record")
		}
		return Variant{
			Kind:   kind,
			Stripe: int(binary.LittleEndian.Uint32(buf[1:5])),
			SstID:  binary.LittleEndian.Uint64(buf[5:13]),
			Level:  int(binary.LittleEndian.Uint32(buf[13:17])),
		}, nil
	case VariantCheckpoint:
		if len(buf) < 1+8+8 {
			return Variant{}, errors.New(errors.ManifestCorruption, "manifest: truncated Checkpoint record")
		}
		return Variant{
			Kind:      kind,
			WALOffset: int64(binary.LittleEndian.Uint64(buf[1:9])),
			Seq:       binary.LittleEndian.Uint64(buf[9:17]),
		}, nil
	case VariantAssignStripe:
		if len(buf) < 1+4+4 {
			return Variant{}, errors.New(errors.ManifestCorruption, "manifest: truncated AssignStripe record")
		}
		stripe := int(binary.LittleEndian.Uint32(buf[1:5]))
		nameLen := int(binary.LittleEndian.Uint32(buf[5:9]))
		if 9+nameLen > len(buf) {
			return Variant{}, errors.New(errors.ManifestCorruption, "manifest: truncated AssignStripe name")
		}
		return Variant{Kind: kind, Stripe: stripe, TableName: string(buf[9 : 9+nameLen])}, nil
	default:
		return Variant{}, errors.New(errors.ManifestCorruption, "manifest: unknown variant kind %d", kind)
	}
}

// SstInfo is one live SST tracked by the manifest's folded state.
type SstInfo struct {
	ID     uint64
	Stripe int
	Level  int
}

// State is the folded result of applying every manifest record in order
// (Apply, §5): the set of live SSTs per stripe and the last
// checkpoint recorded.
type State struct {
	Sstables      map[uint64]SstInfo
	LastWALOffset int64
	LastSeq       uint64
}

func newState() *State {
	return &State{Sstables: make(map[uint64]SstInfo)}
}

// Apply folds one variant into the state (§5's apply step).
func (s *State) Apply(v Variant) {
	switch v.Kind {
	case VariantAddSst:
		s.Sstables[v.SstID] = SstInfo{ID: v.SstID, Stripe: v.Stripe, Level: v.Level}
	case VariantRemoveSst:
		delete(s.Sstables, v.SstID)
	case VariantCheckpoint:
		s.LastWALOffset = v.WALOffset
		s.LastSeq = v.Seq
	case VariantAssignStripe:
		// Stripe assignment for LSI/GSI bookkeeping; the folded State keeps
		// nothing for it, and pkg/lsm neither writes nor reads these records.
	}
}

// SstablesForStripe returns the live SSTs assigned to stripe, oldest first.
func (s *State) SstablesForStripe(stripe int) []SstInfo {
	var out []SstInfo
	for _, info := range s.Sstables {
		if info.Stripe == stripe {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Manifest is the durable catalog: a ring-buffer WAL of Variant records
// plus the State folded from replaying them.
type Manifest struct {
	mu     sync.Mutex
	writer *wal.Writer
	state  *State
}

// Open opens (or creates) the manifest ring buffer at path and replays it
// into a folded State.
func Open(path string, ringSize int64) (*Manifest, error) {
	opts := wal.DefaultOptions()
	opts.Path = path
	opts.RingSize = ringSize

	reader, err := wal.NewReader(path)
	state := newState()
	var nextLSN uint64 = 1
	var stopOffset int64
	if err == nil {
		result, recErr := reader.Recover(ringSize)
		reader.Close()
		if recErr != nil && len(result.Records) == 0 {
			return nil, errors.Wrap(errors.ManifestCorruption, recErr, "manifest: recovery failed")
		}
		for _, rec := range result.Records {
			v, decErr := Decode(rec.Payload)
			if decErr != nil {
				continue
			}
			state.Apply(v)
		}
		nextLSN = result.NextLSN
		stopOffset = result.StopOffset
	}

	writer, err := wal.Open(opts)
	if err != nil {
		return nil, err
	}
	writer.Resume(stopOffset, 0, nextLSN)

	return &Manifest{writer: writer, state: state}, nil
}

// AddSst records a newly flushed or compacted SST.
func (m *Manifest) AddSst(stripe int, sstID uint64, level int) error {
	return m.record(Variant{Kind: VariantAddSst, Stripe: stripe, SstID: sstID, Level: level})
}

// RemoveSst retires an SST a compaction has superseded.
func (m *Manifest) RemoveSst(stripe int, sstID uint64, level int) error {
	return m.record(Variant{Kind: VariantRemoveSst, Stripe: stripe, SstID: sstID, Level: level})
}

// Checkpoint records the WAL offset and sequence number up to which every
// mutation is now durable in an SST, letting the WAL reclaim ring space.
func (m *Manifest) Checkpoint(walOffset int64, seq uint64) error {
	return m.record(Variant{Kind: VariantCheckpoint, WALOffset: walOffset, Seq: seq})
}

// AssignStripe records which stripe a table's base rows (or an LSI
// sharing the base partition key) are pinned to.
func (m *Manifest) AssignStripe(tableName string, stripe int) error {
	return m.record(Variant{Kind: VariantAssignStripe, TableName: tableName, Stripe: stripe})
}

func (m *Manifest) record(v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.writer.WriteRecord(v.Encode()); err != nil {
		return err
	}
	if err := m.writer.Sync(); err != nil {
		return err
	}
	m.state.Apply(v)
	return nil
}

// State returns a snapshot of the folded catalog.
func (m *Manifest) State() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := newState()
	for id, info := range m.state.Sstables {
		out.Sstables[id] = info
	}
	out.LastWALOffset = m.state.LastWALOffset
	out.LastSeq = m.state.LastSeq
	return out
}

// Close closes the manifest's ring buffer file.
func (m *Manifest) Close() error {
	return m.writer.Close()
}
