// Package sctp wraps github.com/pion/sctp into the reliable, ordered
// message-stream association described by spec §4.11: a client/server SCTP
// endpoint driven over an already-established DTLS transport, exposing
// per-stream message queues to the data-channel and file-transfer layers.
package sctp

import (
	"fmt"
	"net"

	pion "github.com/pion/sctp"

	"github.com/roomrtc/corertc/internal/ice"
	"github.com/roomrtc/corertc/internal/logging"
)

var log = logging.DefaultLogger.WithTag("sctp")

// Stream identifiers used by the data-channel/file-transfer layer, per spec
// §4.11/§4.12: stream 1 carries control messages, stream 2 carries file
// data chunks.
const (
	ControlStreamID = 1
	DataStreamID    = 2
)

// MaxMessageSize bounds a single SCTP user message, comfortably larger than
// the 4 KiB file-transfer chunk size.
const MaxMessageSize = 16 * 1024

// Association wraps a pion/sctp association established over a net.Conn
// (the DTLS record layer), handing out per-stream Stream handles.
type Association struct {
	assoc *pion.Association
}

// Open establishes the SCTP association over conn: controlling ICE peers
// run the SCTP client, controlled peers run the server, mirroring the DTLS
// client/server role mapping.
func Open(conn net.Conn, role ice.Role) (*Association, error) {
	config := pion.Config{
		NetConn:              conn,
		MaxReceiveBufferSize: MaxMessageSize,
		LoggerFactory:        sctpLoggerFactory{},
	}

	var assoc *pion.Association
	var err error
	if role == ice.Controlling {
		assoc, err = pion.Client(config)
	} else {
		assoc, err = pion.Server(config)
	}
	if err != nil {
		return nil, fmt.Errorf("sctp: establishing association: %w", err)
	}
	return &Association{assoc: assoc}, nil
}

// OpenStream opens (or reopens) a stream for sending/receiving ordered,
// reliable messages.
func (a *Association) OpenStream(id uint16) (*Stream, error) {
	s, err := a.assoc.OpenStream(id, pion.PayloadTypeWebRTCBinary)
	if err != nil {
		return nil, fmt.Errorf("sctp: opening stream %d: %w", id, err)
	}
	return &Stream{stream: s}, nil
}

// AcceptStream blocks until the remote peer opens a new stream.
func (a *Association) AcceptStream() (*Stream, error) {
	s, err := a.assoc.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("sctp: accepting stream: %w", err)
	}
	return &Stream{stream: s}, nil
}

// Close tears down the association.
func (a *Association) Close() error {
	return a.assoc.Close()
}

// Stream is one ordered, reliable SCTP data stream.
type Stream struct {
	stream *pion.Stream
}

// Send writes one message to the stream. Per spec §4.11/§4.12, a full send
// buffer is reported as an error for the caller to back off and retry, not
// treated as association loss.
func (s *Stream) Send(data []byte) error {
	_, err := s.stream.WriteSCTP(data, pion.PayloadTypeWebRTCBinary)
	if err != nil {
		return fmt.Errorf("sctp: stream %d send: %w", s.stream.StreamIdentifier(), err)
	}
	return nil
}

// Receive reads the next message from the stream into buf, returning the
// number of bytes read.
func (s *Stream) Receive(buf []byte) (int, error) {
	n, _, err := s.stream.ReadSCTP(buf)
	if err != nil {
		return n, fmt.Errorf("sctp: stream %d receive: %w", s.stream.StreamIdentifier(), err)
	}
	return n, nil
}

// Close closes this stream only; the association and other streams are
// unaffected.
func (s *Stream) Close() error {
	return s.stream.Close()
}
