package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStunBindingSuccessRoundTrip(t *testing.T) {
	req := newBindingRequest()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.7"), Port: 54321}

	resp := newBindingSuccess(req.transactionID, addr)
	encoded := resp.encode()

	parsed, err := parseStunMessage(encoded)
	require.NoError(t, err)
	require.NotNil(t, parsed)

	assert.Equal(t, req.transactionID, parsed.transactionID)
	require.NotNil(t, parsed.mappedAddr)
	assert.True(t, parsed.mappedAddr.IP.Equal(addr.IP))
	assert.Equal(t, addr.Port, parsed.mappedAddr.Port)
}

func TestStunBindingRequestRoundTrip(t *testing.T) {
	req := newBindingRequest()
	parsed, err := parseStunMessage(req.encode())
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.isRequest())
	assert.Equal(t, req.transactionID, parsed.transactionID)
}

func TestParseStunMessageIgnoresNonStun(t *testing.T) {
	// First byte 0 could be STUN-range, but bad magic cookie -> not STUN.
	data := make([]byte, 20)
	msg, err := parseStunMessage(data)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestParseStunMessageTooShort(t *testing.T) {
	msg, err := parseStunMessage([]byte{0, 1, 0, 0})
	assert.NoError(t, err)
	assert.Nil(t, msg)
}
