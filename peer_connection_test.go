package corertc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomrtc/corertc/internal/ice"
)

// unreachableStunServer stands in for a real public STUN server: Gather
// tolerates the query failing and falls back to the host candidate alone,
// per internal/ice's own loopback test pattern.
const unreachableStunServer = "127.0.0.1:1"

func TestOfferAnswerIceDtlsLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	controlling, err := NewPeerConnection(ctx, ice.Controlling, Config{StunServer: unreachableStunServer})
	require.NoError(t, err)
	defer controlling.Close()

	controlled, err := NewPeerConnection(ctx, ice.Controlled, Config{StunServer: unreachableStunServer})
	require.NoError(t, err)
	defer controlled.Close()

	offer, err := controlling.CreateOffer(ctx)
	require.NoError(t, err)
	assert.Contains(t, offer, "a=ice-ufrag:")
	assert.Contains(t, offer, "a=fingerprint:")

	answer, err := controlled.ProcessOffer(ctx, offer)
	require.NoError(t, err)
	assert.Contains(t, answer, "a=candidate:")

	require.NoError(t, controlling.SetRemoteDescription(answer))

	require.NoError(t, controlling.StartConnectivityChecks(ctx))
	require.NoError(t, controlled.StartConnectivityChecks(ctx))

	require.Eventually(t, func() bool {
		return controlling.agent.IsConnected() && controlled.agent.IsConnected()
	}, 10*time.Second, 10*time.Millisecond)

	var dtlsErrA, dtlsErrB error
	done := make(chan struct{}, 2)
	go func() {
		dtlsErrA = controlling.StartDtlsHandshake(ctx, 10*time.Second)
		done <- struct{}{}
	}()
	go func() {
		dtlsErrB = controlled.StartDtlsHandshake(ctx, 10*time.Second)
		done <- struct{}{}
	}()
	<-done
	<-done

	require.NoError(t, dtlsErrA)
	require.NoError(t, dtlsErrB)
	assert.True(t, controlling.IsConnected())
	assert.True(t, controlled.IsConnected())
	require.NotNil(t, controlling.SrtpContext())
	require.NotNil(t, controlled.SrtpContext())
	require.NotNil(t, controlling.DataChannel())
	require.NotNil(t, controlled.DataChannel())
}

func TestCreateOfferWrongRoleFails(t *testing.T) {
	ctx := context.Background()
	pc, err := NewPeerConnection(ctx, ice.Controlled, Config{StunServer: unreachableStunServer})
	require.NoError(t, err)
	defer pc.Close()

	_, err = pc.CreateOffer(ctx)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, InvalidRole, e.Kind)
}

func TestProcessOfferRejectsMissingFingerprint(t *testing.T) {
	ctx := context.Background()
	pc, err := NewPeerConnection(ctx, ice.Controlled, Config{StunServer: unreachableStunServer})
	require.NoError(t, err)
	defer pc.Close()

	badOffer := "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nt=0\r\nm=video 9 RTP/SAVP 96\r\na=ice-ufrag:abcdefgh\r\na=ice-pwd:abcdefghabcdefghabcdefgh\r\na=candidate:1 1 UDP 2130706431 127.0.0.1 5000 typ host\r\n"
	_, err = pc.ProcessOffer(ctx, badOffer)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, Sdp, e.Kind)
}
