// Package corertc implements a minimal WebRTC-like peer connection: ICE
// connectivity establishment, a DTLS-SRTP handshake, and H.264/Opus media
// pipelines over the resulting SRTP context, orchestrated through a single
// SDP offer/answer exchange.
package corertc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/roomrtc/corertc/internal/dtls"
	"github.com/roomrtc/corertc/internal/ice"
	"github.com/roomrtc/corertc/internal/logging"
	"github.com/roomrtc/corertc/internal/sctp"
	"github.com/roomrtc/corertc/internal/sdp"
	"github.com/roomrtc/corertc/internal/srtp"
)

var log = logging.DefaultLogger.WithTag("corertc")

// State is the PeerConnection's lifecycle stage. Transitions are strictly
// monotonic except that Closed is reachable from any state.
type State int

const (
	New State = iota
	Gathering
	Connecting
	Authenticating
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Gathering:
		return "gathering"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerConnection orchestrates a DatagramSocket, an IceAgent, a DtlsSession,
// and (once connected) an SrtpContext through a single offer/answer
// negotiation, per the role-gated contract: Controlling creates offers and
// consumes answers; Controlled processes offers and produces answers.
type PeerConnection struct {
	role ice.Role
	cfg  Config

	socket *ice.DatagramSocket
	agent  *ice.Agent

	cert        tls.Certificate
	fingerprint string

	mu    sync.Mutex
	state State

	localDesc  sdp.Description
	remoteDesc sdp.Description

	dtlsSession *dtls.Session
	srtpCtx     *srtp.Context
	sctpAssoc   *sctp.Association

	cancel context.CancelFunc
}

// NewPeerConnection binds a local UDP socket and generates a fresh
// self-signed DTLS certificate. The socket's receive loop runs until the
// connection is closed.
func NewPeerConnection(ctx context.Context, role ice.Role, cfg Config) (*PeerConnection, error) {
	socket, err := ice.NewDatagramSocket("")
	if err != nil {
		return nil, newError(Socket, "NewPeerConnection", err)
	}

	cert, err := dtls.GenerateSelfSigned()
	if err != nil {
		socket.Close()
		return nil, newError(Dtls, "NewPeerConnection", err)
	}
	fp, err := dtls.Fingerprint(cert)
	if err != nil {
		socket.Close()
		return nil, newError(Dtls, "NewPeerConnection", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	pc := &PeerConnection{
		role:        role,
		cfg:         cfg,
		socket:      socket,
		agent:       ice.NewAgent(role, socket, cfg.stunServer()),
		cert:        cert,
		fingerprint: fp,
		cancel:      cancel,
	}
	go socket.Run(runCtx)

	return pc, nil
}

func (pc *PeerConnection) transition(to State) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if to != Closed && to < pc.state {
		return
	}
	log.Debug("state %s -> %s", pc.state, to)
	pc.state = to
}

func (pc *PeerConnection) getState() State {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

// CreateOffer gathers local candidates and renders the SDP offer.
// Controlling role only.
func (pc *PeerConnection) CreateOffer(ctx context.Context) (string, error) {
	if pc.role != ice.Controlling {
		return "", newError(InvalidRole, "CreateOffer", nil)
	}

	candidates, err := pc.agent.Gather(ctx)
	if err != nil {
		return "", newError(Ice, "CreateOffer", err)
	}
	pc.transition(Gathering)

	session := pc.agent.Session()
	desc := sdp.Description{
		SessionID:      uint64(time.Now().UnixNano()),
		SessionVersion: 1,
		IceUfrag:       session.Ufrag,
		IcePwd:         session.Pwd,
		Fingerprint:    pc.fingerprint,
		Candidates:     candidates,
	}
	pc.mu.Lock()
	pc.localDesc = desc
	pc.mu.Unlock()

	return sdp.Render(desc), nil
}

// ProcessOffer parses a remote offer, installs its candidates and
// credentials, and renders the symmetric answer. Controlled role only.
func (pc *PeerConnection) ProcessOffer(ctx context.Context, offerSDP string) (string, error) {
	if pc.role != ice.Controlled {
		return "", newError(InvalidRole, "ProcessOffer", nil)
	}

	offer, err := sdp.Parse(offerSDP)
	if err != nil {
		return "", newError(Sdp, "ProcessOffer", err)
	}
	if offer.Fingerprint == "" {
		return "", newError(Sdp, "ProcessOffer", fmt.Errorf("missing fingerprint"))
	}

	pc.mu.Lock()
	pc.remoteDesc = offer
	pc.mu.Unlock()

	candidates, err := pc.agent.Gather(ctx)
	if err != nil {
		return "", newError(Ice, "ProcessOffer", err)
	}
	pc.transition(Gathering)

	pc.agent.Configure(offer.IceUfrag, offer.IcePwd)
	pc.agent.AddRemoteCandidates(offer.Candidates)

	session := pc.agent.Session()
	answer := sdp.Description{
		SessionID:      uint64(time.Now().UnixNano()),
		SessionVersion: 1,
		IceUfrag:       session.Ufrag,
		IcePwd:         session.Pwd,
		Fingerprint:    pc.fingerprint,
		Candidates:     candidates,
	}
	pc.mu.Lock()
	pc.localDesc = answer
	pc.mu.Unlock()

	return sdp.Render(answer), nil
}

// SetRemoteDescription installs the remote answer's credentials, candidates,
// and fingerprint after CreateOffer. Controlling role only.
func (pc *PeerConnection) SetRemoteDescription(answerSDP string) error {
	if pc.role != ice.Controlling {
		return newError(InvalidRole, "SetRemoteDescription", nil)
	}

	answer, err := sdp.Parse(answerSDP)
	if err != nil {
		return newError(Sdp, "SetRemoteDescription", err)
	}
	if answer.Fingerprint == "" {
		return newError(Sdp, "SetRemoteDescription", fmt.Errorf("missing fingerprint"))
	}

	pc.mu.Lock()
	pc.remoteDesc = answer
	pc.mu.Unlock()

	pc.agent.Configure(answer.IceUfrag, answer.IcePwd)
	pc.agent.AddRemoteCandidates(answer.Candidates)
	return nil
}

// StartConnectivityChecks begins ICE connectivity checks in the background.
func (pc *PeerConnection) StartConnectivityChecks(ctx context.Context) error {
	if err := pc.agent.StartConnectivityChecks(ctx); err != nil {
		return newError(Ice, "StartConnectivityChecks", err)
	}
	pc.transition(Connecting)
	return nil
}

// StartDtlsHandshake blocks until ICE has selected a pair, then drives the
// DTLS handshake to completion or timeout, verifies the remote fingerprint,
// and derives the SrtpContext.
func (pc *PeerConnection) StartDtlsHandshake(ctx context.Context, timeout time.Duration) error {
	if !pc.agent.IsConnected() {
		return newError(Ice, "StartDtlsHandshake", fmt.Errorf("ice not connected"))
	}
	pc.transition(Authenticating)

	pc.mu.Lock()
	remoteFP := pc.remoteDesc.Fingerprint
	pc.mu.Unlock()

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := dtls.Handshake(hctx, pc.socket, pc.cert, pc.role, remoteFP)
	if err != nil {
		return newError(Dtls, "StartDtlsHandshake", err)
	}

	srtpCtx, err := srtp.NewContext(session.SrtpKey())
	if err != nil {
		session.Close()
		return newError(Dtls, "StartDtlsHandshake", err)
	}

	assoc, err := sctp.Open(session.Conn(), pc.role)
	if err != nil {
		session.Close()
		return newError(Media, "StartDtlsHandshake", err)
	}

	pc.mu.Lock()
	pc.dtlsSession = session
	pc.srtpCtx = srtpCtx
	pc.sctpAssoc = assoc
	pc.mu.Unlock()

	pc.transition(Connected)
	return nil
}

// DataChannel returns the SCTP association opened over the DTLS transport
// once the connection completes, for use by spec §4.11/§4.12's file
// transfer control and data streams. Returns nil before StartDtlsHandshake
// completes.
func (pc *PeerConnection) DataChannel() *sctp.Association {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.sctpAssoc
}

// Send writes a raw datagram to the ICE-selected remote address.
func (pc *PeerConnection) Send(b []byte) error {
	if err := pc.socket.Send(b); err != nil {
		return newError(Socket, "Send", err)
	}
	return nil
}

// Receiver returns the socket's classified RTP/RTCP inbound queue.
func (pc *PeerConnection) Receiver() <-chan ice.ReceivedPacket {
	return pc.socket.MediaQueue()
}

// IsConnected reports whether the connection has completed DTLS and is
// ready for media.
func (pc *PeerConnection) IsConnected() bool {
	return pc.getState() == Connected
}

// IsDtlsConnected reports whether the DTLS handshake has completed. It
// becomes true at the end of a successful StartDtlsHandshake, just before
// IsConnected does, and unlike IsConnected it stays true after Close.
func (pc *PeerConnection) IsDtlsConnected() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.dtlsSession != nil
}

// DtlsFingerprint returns the local certificate's SHA-256 fingerprint, as
// advertised in SDP.
func (pc *PeerConnection) DtlsFingerprint() string {
	return pc.fingerprint
}

// SrtpContext returns the shared SRTP keystream context, or nil before the
// DTLS handshake completes.
func (pc *PeerConnection) SrtpContext() *srtp.Context {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.srtpCtx
}

// SelectedRemoteAddr returns the ICE-selected peer address, or nil before
// connectivity checks select a pair.
func (pc *PeerConnection) SelectedRemoteAddr() *net.UDPAddr {
	if p := pc.agent.SelectedPair(); p != nil {
		return p.Remote.Addr()
	}
	return nil
}

// Close tears down the connection: cancels the socket's receive loop and
// closes the DTLS session, from any state.
func (pc *PeerConnection) Close() error {
	pc.transition(Closed)
	pc.cancel()

	pc.mu.Lock()
	assoc := pc.sctpAssoc
	session := pc.dtlsSession
	pc.mu.Unlock()
	if assoc != nil {
		assoc.Close()
	}
	if session != nil {
		session.Close()
	}
	return pc.socket.Close()
}
