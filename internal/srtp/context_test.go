package srtp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef")
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	ctx, err := NewContext(testKey())
	require.NoError(t, err)

	plain := []byte("hola webrtc")
	cipher := ctx.Protect(42, 123456, plain)
	assert.Len(t, cipher, len(plain))
	assert.NotEqual(t, plain, cipher)

	recovered := ctx.Unprotect(42, 123456, cipher)
	assert.Equal(t, plain, recovered)
}

func TestProtectIsKeyedByTimestampAndSequence(t *testing.T) {
	ctx, err := NewContext(testKey())
	require.NoError(t, err)

	plain := []byte("hola webrtc")
	cipher := ctx.Protect(42, 123456, plain)

	// spec §8 scenario 4: unprotecting with the wrong sequence number must
	// not recover the original bytes.
	wrong := ctx.Unprotect(43, 123456, cipher)
	assert.False(t, bytes.Equal(plain, wrong))
}

func TestNewContextRejectsShortKeys(t *testing.T) {
	_, err := NewContext(make([]byte, 15))
	assert.Error(t, err)
}

func TestNewContextAcceptsExactly16Bytes(t *testing.T) {
	_, err := NewContext(make([]byte, 16))
	assert.NoError(t, err)
}
