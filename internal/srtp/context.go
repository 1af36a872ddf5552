// Package srtp implements the simplified SrtpContext described in the
// protect/unprotect contract: a deterministic AES-CTR keystream seeded from
// (timestamp, sequence number, key), with no authentication or replay
// protection. This is deliberately not an RFC 3711 implementation.
package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// minKeyLen is the shortest key construction will accept.
const minKeyLen = 16

// Context is a read-only, cloneable keystream generator built from a single
// key. The zero value is not usable; use NewContext.
type Context struct {
	block cipher.Block
}

// NewContext builds an SrtpContext from the exported DTLS keying material.
// Keys shorter than 16 bytes are rejected.
func NewContext(key []byte) (*Context, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("srtp: key too short: got %d bytes, need at least %d", len(key), minKeyLen)
	}
	block, err := aes.NewCipher(key[:minKeyLen])
	if err != nil {
		return nil, fmt.Errorf("srtp: %w", err)
	}
	return &Context{block: block}, nil
}

// counter derives the 16-byte AES-CTR initial counter block from the RTP
// timestamp and sequence number, so the keystream is a deterministic
// function of (ts, seq, key) alone.
func (c *Context) counter(seq uint16, ts uint32) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint32(iv[0:4], ts)
	binary.BigEndian.PutUint16(iv[4:6], seq)
	return iv
}

func (c *Context) xor(seq uint16, ts uint32, in []byte) []byte {
	out := make([]byte, len(in))
	cipher.NewCTR(c.block, c.counter(seq, ts)).XORKeyStream(out, in)
	return out
}

// Protect encrypts plain into a same-length ciphertext keyed by (seq, ts).
func (c *Context) Protect(seq uint16, ts uint32, plain []byte) []byte {
	return c.xor(seq, ts, plain)
}

// Unprotect recovers the original payload. Protect and Unprotect are the
// same keystream XOR, so this is simply Protect applied again with the same
// (seq, ts) pair.
func (c *Context) Unprotect(seq uint16, ts uint32, ciphertext []byte) []byte {
	return c.xor(seq, ts, ciphertext)
}
