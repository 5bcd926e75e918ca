package types

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// StripeCount is the fixed number of independent LSM shards (§3).
const StripeCount = 256

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Key is the composite partition/sort key pair addressing one logical row.
type Key struct {
	PK []byte
	SK []byte // nil when the table has no sort key
}

// HasSK reports whether this key carries a sort-key component.
func (k Key) HasSK() bool { return k.SK != nil }

// Encode produces the deterministic binary encoding from §3:
// u32-LE length of pk ‖ pk ‖ (if sk present) sk, with no explicit sk length
// (sk always extends to the end of the encoded key).
func (k Key) Encode() []byte {
	buf := make([]byte, 4+len(k.PK)+len(k.SK))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(k.PK)))
	copy(buf[4:], k.PK)
	copy(buf[4+len(k.PK):], k.SK)
	return buf
}

// DecodeKey parses the §3 encoding back into pk/sk components. hasSK tells
// the decoder whether any bytes after pk belong to a sort key (the encoding
// is otherwise ambiguous about a present-but-empty sk).
func DecodeKey(buf []byte, hasSK bool) (Key, bool) {
	if len(buf) < 4 {
		return Key{}, false
	}
	pkLen := int(binary.LittleEndian.Uint32(buf[0:4]))
	if 4+pkLen > len(buf) {
		return Key{}, false
	}
	pk := buf[4 : 4+pkLen]
	rest := buf[4+pkLen:]
	k := Key{PK: append([]byte(nil), pk...)}
	if hasSK {
		k.SK = append([]byte(nil), rest...)
	}
	return k, true
}

// Stripe returns crc32c(pk) mod 256, the shard a key's row always lives in.
func Stripe(pk []byte) int {
	return int(crc32.Checksum(pk, castagnoli) % StripeCount)
}

// EncodedKey is the Comparable implementation used by the per-stripe
// memtable's B+Tree: it orders purely on the raw encoded-key bytes, giving
// the strict "sorted by encoded key" ordering §3/I3 require.
type EncodedKey []byte

func (e EncodedKey) Compare(other Comparable) int {
	o, ok := other.(EncodedKey)
	if !ok {
		panic("types: EncodedKey compared against a non-EncodedKey value")
	}
	return bytes.Compare(e, o)
}

// IndexKeyPrefix is the synthetic pk byte used to namespace derived index
// records inside the same LSM key space (§3): 0xFF.
const IndexKeyPrefix = 0xFF

// EncodeIndexPK builds the synthetic pk for an index record:
// 0xFF ‖ u32-LE name_len ‖ name ‖ u32-LE pk_len ‖ base_pk ‖ u32-LE sk_len ‖ index_sk
func EncodeIndexPK(indexName string, basePK []byte, indexSK []byte) []byte {
	buf := make([]byte, 0, 1+4+len(indexName)+4+len(basePK)+4+len(indexSK))
	buf = append(buf, IndexKeyPrefix)
	buf = appendU32Prefixed(buf, []byte(indexName))
	buf = appendU32Prefixed(buf, basePK)
	buf = appendU32Prefixed(buf, indexSK)
	return buf
}

func appendU32Prefixed(buf, data []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}

// DecodeIndexPK reverses EncodeIndexPK.
func DecodeIndexPK(buf []byte) (indexName string, basePK, indexSK []byte, ok bool) {
	if len(buf) < 1 || buf[0] != IndexKeyPrefix {
		return "", nil, nil, false
	}
	buf = buf[1:]
	name, buf, ok := readU32Prefixed(buf)
	if !ok {
		return "", nil, nil, false
	}
	pk, buf, ok := readU32Prefixed(buf)
	if !ok {
		return "", nil, nil, false
	}
	sk, _, ok := readU32Prefixed(buf)
	if !ok {
		return "", nil, nil, false
	}
	return string(name), pk, sk, true
}

func readU32Prefixed(buf []byte) (data, rest []byte, ok bool) {
	if len(buf) < 4 {
		return nil, nil, false
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	if 4+n > len(buf) {
		return nil, nil, false
	}
	return buf[4 : 4+n], buf[4+n:], true
}
