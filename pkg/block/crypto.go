package block

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// AES-256-GCM is implemented directly on crypto/aes and crypto/cipher: the
// pack carries no higher-level envelope-encryption library, and §3 pins
// the exact nonce construction (8-byte LE block id, zero-padded to 12
// bytes), which only the stdlib primitives let us control precisely.

// Cipher wraps a 32-byte key into an AEAD ready to seal/open block
// payloads, deriving each block's nonce from its block id.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte AES-256 key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, errors.New(errors.EncryptionError, "block: AES-256 key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.EncryptionError, err, "block: failed to init AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(errors.EncryptionError, err, "block: failed to init GCM")
	}
	return &Cipher{aead: aead}, nil
}

func nonceFor(blockID uint64) []byte {
	nonce := make([]byte, 12)
	binary.LittleEndian.PutUint64(nonce[:8], blockID)
	return nonce
}

// Seal encrypts plaintext under blockID's derived nonce and returns the
// ciphertext (with its GCM tag) in a newly allocated slice.
func (c *Cipher) Seal(blockID uint64, plaintext []byte) []byte {
	return c.aead.Seal(nil, nonceFor(blockID), plaintext, nil)
}

// Open decrypts ciphertext sealed under blockID's derived nonce.
func (c *Cipher) Open(blockID uint64, ciphertext []byte) ([]byte, error) {
	out, err := c.aead.Open(nil, nonceFor(blockID), ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(errors.EncryptionError, err, "block: GCM authentication failed for block %d", blockID)
	}
	return out, nil
}
