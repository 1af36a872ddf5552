package ice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoopbackConnectivityCheck exercises spec §8 scenario 5: two agents on
// 127.0.0.1, one Controlling one Controlled, both reach isConnected()==true
// and the controlling side selects a host/host pair.
func TestLoopbackConnectivityCheck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sockA, err := NewDatagramSocket("127.0.0.1")
	require.NoError(t, err)
	defer sockA.Close()
	sockB, err := NewDatagramSocket("127.0.0.1")
	require.NoError(t, err)
	defer sockB.Close()

	go sockA.Run(ctx)
	go sockB.Run(ctx)

	agentA := NewAgent(Controlling, sockA, "127.0.0.1:1") // unreachable STUN server is fine for loopback
	agentB := NewAgent(Controlled, sockB, "127.0.0.1:1")

	candA := newHostCandidate(sockA.LocalAddr())
	candB := newHostCandidate(sockB.LocalAddr())
	agentA.addLocalCandidate(candA)
	agentB.addLocalCandidate(candB)

	agentA.AddRemoteCandidates([]Candidate{candB})
	agentB.AddRemoteCandidates([]Candidate{candA})

	require.NoError(t, agentA.StartConnectivityChecks(ctx))
	require.NoError(t, agentB.StartConnectivityChecks(ctx))

	require.Eventually(t, func() bool {
		return agentA.IsConnected() && agentB.IsConnected()
	}, 5*time.Second, 10*time.Millisecond)

	selected := agentA.SelectedPair()
	require.NotNil(t, selected)
	require.Equal(t, Host, selected.Local.Type)
	require.Equal(t, Host, selected.Remote.Type)
}

func TestStartConnectivityChecksNoPairs(t *testing.T) {
	sock, err := NewDatagramSocket("127.0.0.1")
	require.NoError(t, err)
	defer sock.Close()

	a := NewAgent(Controlling, sock, "127.0.0.1:1")
	err = a.StartConnectivityChecks(context.Background())
	require.ErrorIs(t, err, ErrNoPairs)
}
