package sdp

import (
	"strconv"
	"strings"
	"testing"

	"github.com/roomrtc/corertc/internal/ice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHostCandidate(ip string, port int) ice.Candidate {
	c, err := ice.ParseCandidateLine("foo 1 UDP 2130706431 " + ip + " " + strconv.Itoa(port) + " typ host")
	if err != nil {
		panic(err)
	}
	return c
}

func sampleDescription() Description {
	return Description{
		SessionID:      1234,
		SessionVersion: 1,
		IceUfrag:       "abcd1234",
		IcePwd:         "abcdefghijklmnopqrstuvwx",
		Fingerprint:    "AA:BB:CC",
		Candidates: []ice.Candidate{
			mustHostCandidate("10.0.0.5", 4500),
		},
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	d := sampleDescription()
	text := Render(d)

	parsed, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, d.SessionID, parsed.SessionID)
	assert.Equal(t, d.SessionVersion, parsed.SessionVersion)
	assert.Equal(t, d.IceUfrag, parsed.IceUfrag)
	assert.Equal(t, d.IcePwd, parsed.IcePwd)
	assert.Equal(t, d.Fingerprint, parsed.Fingerprint)
	require.Len(t, parsed.Candidates, 1)
	assert.Equal(t, d.Candidates[0], parsed.Candidates[0])
}

func TestRenderLineOrder(t *testing.T) {
	text := Render(sampleDescription())
	lines := strings.Split(strings.TrimRight(text, "\r\n"), "\r\n")
	require.GreaterOrEqual(t, len(lines), 9)
	assert.Equal(t, "v=0", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "o=- "))
	assert.Equal(t, "t=0", lines[2])
	assert.Equal(t, "m=video 9 RTP/SAVP 96", lines[3])
}

func TestParseRejectsMissingVersion(t *testing.T) {
	_, err := Parse("o=- 1 1 IN IP4 0.0.0.0\r\nt=0\r\n")
	assert.Error(t, err)
}

func TestParseRejectsMissingCandidate(t *testing.T) {
	d := sampleDescription()
	d.Candidates = nil
	_, err := Parse(Render(d))
	assert.Error(t, err)
}

func TestParseRejectsMissingFingerprint(t *testing.T) {
	d := sampleDescription()
	d.Fingerprint = ""
	text := strings.ReplaceAll(Render(d), "a=fingerprint:sha-256 \r\n", "")
	_, err := Parse(text)
	assert.Error(t, err)
}

func TestParseToleratesAttributeOrder(t *testing.T) {
	text := "v=0\r\n" +
		"o=- 1 1 IN IP4 0.0.0.0\r\n" +
		"t=0\r\n" +
		"m=video 9 RTP/SAVP 96\r\n" +
		"a=candidate:f 1 UDP 2130706431 10.0.0.5 4500 typ host\r\n" +
		"a=fingerprint:sha-256 AA:BB\r\n" +
		"a=ice-pwd:abcdefghijklmnopqrstuvwx\r\n" +
		"a=ice-ufrag:abcd1234\r\n"
	d, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", d.IceUfrag)
	assert.Equal(t, "AA:BB", d.Fingerprint)
}
