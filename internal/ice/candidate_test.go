package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcPriorityLiterals(t *testing.T) {
	// spec §8 scenario 2: Host typePref=126, localPref=65535, componentId=1.
	assert.Equal(t, uint32(2130706431), calcPriority(Host, 65535, 1))
	assert.Equal(t, uint32(1694498815), calcPriority(Srflx, 65535, 1))
}

func TestCandidateSdpRoundTrip(t *testing.T) {
	c := newHostCandidate(&net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 4500})

	parsed, err := parseCandidateLine("candidate:" + c.sdpLine())
	require.NoError(t, err)

	assert.Equal(t, c.Foundation, parsed.Foundation)
	assert.Equal(t, c.Type, parsed.Type)
	assert.True(t, c.IP.Equal(parsed.IP))
	assert.Equal(t, c.Port, parsed.Port)
	assert.Equal(t, c.Priority, parsed.Priority)
}

func TestParseCandidateLineRejectsMalformed(t *testing.T) {
	_, err := parseCandidateLine("candidate:garbage")
	assert.Error(t, err)
}
