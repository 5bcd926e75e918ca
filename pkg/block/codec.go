package block

import "github.com/bobboyms/stonedb/pkg/errors"

// Codec bundles the optional compression and encryption a block store
// applies on top of the base flags/payload/CRC framing. A zero Codec
// (Compression: CompressionNone, Cipher: nil) writes plain blocks.
type Codec struct {
	Compression Compression
	Cipher      *Cipher // nil disables encryption
}

// EncodeBlock compresses then (optionally) encrypts raw, and frames the
// result as a Size-byte block tagged with the flags that were applied.
func (c Codec) EncodeBlock(blockID uint64, raw []byte) ([]byte, error) {
	payload, err := compress(c.Compression, raw)
	if err != nil {
		return nil, err
	}
	var flags Flag
	if c.Compression != CompressionNone {
		flags |= FlagCompressed
	}
	if c.Cipher != nil {
		payload = c.Cipher.Seal(blockID, payload)
		flags |= FlagEncrypted
	}
	return Encode(flags, payload)
}

// DecodeBlock validates buf's CRC, then reverses whatever encryption and
// compression its flags indicate were applied.
func (c Codec) DecodeBlock(blockID uint64, buf []byte) ([]byte, error) {
	flags, payload, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if flags&FlagEncrypted != 0 {
		if c.Cipher == nil {
			return nil, errors.New(errors.EncryptionError, "block: block %d is encrypted but no cipher was configured", blockID)
		}
		payload, err = c.Cipher.Open(blockID, payload)
		if err != nil {
			return nil, err
		}
	}
	algo := CompressionNone
	if flags&FlagCompressed != 0 {
		algo = c.Compression
		if algo == CompressionNone {
			algo = CompressionZstd
		}
	}
	return decompress(algo, payload)
}
