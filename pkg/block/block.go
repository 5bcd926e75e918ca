// Package block implements the fixed 4 KiB physical block that frames each
// SST data block (§3); the WAL, the manifest and the SST index and bloom
// sections use their own framing instead. A block holds a small
// flags header, a length-prefixed payload, zero padding out to the block
// size, and a trailing CRC-32C that covers everything preceding it,
// including the padding.
package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// Size is the fixed physical size of every SST data block.
const Size = 4096

// headerLen is flags(1) + reserved(3) + payload_len(4) + reserved(8).
const headerLen = 16
const trailerLen = 4
const maxPayload = Size - headerLen - trailerLen

// Flag bits stored in the block header's first byte.
type Flag uint8

const (
	FlagEncrypted  Flag = 1 << 0
	FlagCompressed Flag = 1 << 1
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Encode lays payload into a Size-byte block with the given flags set.
// payload must already reflect any compression/encryption the caller
// wants applied (see Codec), and must fit within maxPayload bytes.
func Encode(flags Flag, payload []byte) ([]byte, error) {
	if len(payload) > maxPayload {
		return nil, errors.New(errors.InvalidArgument, "block: payload of %d bytes exceeds max %d", len(payload), maxPayload)
	}
	buf := make([]byte, Size)
	buf[0] = byte(flags)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[headerLen:], payload)
	// The checksum covers the zero-padding too, not just header+payload,
	// so a bit flip landing in padding is still detected (§4.3/§6, I7).
	sum := crc32.Checksum(buf[:Size-trailerLen], castagnoli)
	binary.LittleEndian.PutUint32(buf[Size-trailerLen:], sum)
	return buf, nil
}

// Decode validates the trailing CRC-32C and returns the flags and raw
// payload bytes (still compressed/encrypted, if those flags are set).
func Decode(buf []byte) (Flag, []byte, error) {
	if len(buf) != Size {
		return 0, nil, errors.New(errors.InvalidArgument, "block: expected %d bytes, got %d", Size, len(buf))
	}
	payloadLen := int(binary.LittleEndian.Uint32(buf[4:8]))
	if payloadLen > maxPayload {
		return 0, nil, errors.New(errors.Corruption, "block: payload_len %d exceeds max %d", payloadLen, maxPayload)
	}
	want := binary.LittleEndian.Uint32(buf[Size-trailerLen:])
	got := crc32.Checksum(buf[:Size-trailerLen], castagnoli)
	if got != want {
		return 0, nil, errors.New(errors.ChecksumMismatch, "block: crc32c mismatch: want %08x got %08x", want, got)
	}
	flags := Flag(buf[0])
	payload := make([]byte, payloadLen)
	copy(payload, buf[headerLen:headerLen+payloadLen])
	return flags, payload, nil
}
