package codec

import (
	"encoding/binary"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/types"
)

// EncodeRecord serializes a Record as:
// u32-LE key_len ‖ key_bytes ‖ u64-LE seq ‖ u8 tombstone ‖ (if !tombstone) bson item
// It is the on-disk shape used by both WAL payloads and SST data blocks.
func EncodeRecord(rec types.Record) ([]byte, error) {
	keyBytes := rec.Key.Encode()
	var itemBytes []byte
	if !rec.IsTombstone() {
		var err error
		itemBytes, err = bson.Marshal(EncodeItem(rec.Value))
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, err, "codec: failed to marshal item")
		}
	}

	buf := make([]byte, 4+len(keyBytes)+8+1+len(itemBytes))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(keyBytes)))
	off := 4
	copy(buf[off:], keyBytes)
	off += len(keyBytes)
	binary.LittleEndian.PutUint64(buf[off:off+8], rec.Seq)
	off += 8
	if rec.IsTombstone() {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++
	copy(buf[off:], itemBytes)
	return buf, nil
}

// DecodeRecord reverses EncodeRecord. hasSK tells the key decoder whether
// trailing key bytes belong to a sort key (see types.DecodeKey).
func DecodeRecord(buf []byte, hasSK bool) (types.Record, error) {
	if len(buf) < 4 {
		return types.Record{}, errors.New(errors.Corruption, "codec: record too short")
	}
	keyLen := int(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	if off+keyLen+8+1 > len(buf) {
		return types.Record{}, errors.New(errors.Corruption, "codec: record truncated")
	}
	key, ok := types.DecodeKey(buf[off:off+keyLen], hasSK)
	if !ok {
		return types.Record{}, errors.New(errors.Corruption, "codec: failed to decode key")
	}
	off += keyLen
	seq := binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	tombstone := buf[off] == 1
	off++

	rec := types.Record{Key: key, Seq: seq}
	if tombstone {
		return rec, nil
	}

	var doc bson.D
	if err := bson.Unmarshal(buf[off:], &doc); err != nil {
		return types.Record{}, errors.Wrap(errors.Corruption, err, "codec: failed to unmarshal item")
	}
	item, err := DecodeItem(doc)
	if err != nil {
		return types.Record{}, err
	}
	rec.Value = item
	return rec, nil
}

// EncodeRecordValue serializes everything about rec except its key:
// u64-LE seq ‖ u8 tombstone ‖ (if !tombstone) bson item. SST data blocks
// use this so a record's key can be prefix-compressed against its
// predecessor instead of repeated verbatim.
func EncodeRecordValue(rec types.Record) ([]byte, error) {
	var itemBytes []byte
	if !rec.IsTombstone() {
		var err error
		itemBytes, err = bson.Marshal(EncodeItem(rec.Value))
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, err, "codec: failed to marshal item")
		}
	}
	buf := make([]byte, 8+1+len(itemBytes))
	binary.LittleEndian.PutUint64(buf[0:8], rec.Seq)
	if rec.IsTombstone() {
		buf[8] = 1
	} else {
		buf[8] = 0
	}
	copy(buf[9:], itemBytes)
	return buf, nil
}

// DecodeRecordValue reverses EncodeRecordValue, attaching key to the
// result.
func DecodeRecordValue(buf []byte, key types.Key) (types.Record, error) {
	if len(buf) < 9 {
		return types.Record{}, errors.New(errors.Corruption, "codec: record value too short")
	}
	seq := binary.LittleEndian.Uint64(buf[0:8])
	rec := types.Record{Key: key, Seq: seq}
	if buf[8] == 1 {
		return rec, nil
	}
	var doc bson.D
	if err := bson.Unmarshal(buf[9:], &doc); err != nil {
		return types.Record{}, errors.Wrap(errors.Corruption, err, "codec: failed to unmarshal item")
	}
	item, err := DecodeItem(doc)
	if err != nil {
		return types.Record{}, err
	}
	rec.Value = item
	return rec, nil
}
