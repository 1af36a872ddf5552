// Package ice implements the Interactive Connectivity Establishment agent
// and the shared UDP datagram socket it gathers and checks candidates on.
package ice

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/roomrtc/corertc/internal/logging"
)

var log = logging.DefaultLogger.WithTag("ice")

// readTimeout bounds each blocking ReadFromUDP call so the receive loop can
// observe context cancellation promptly.
const readTimeout = 200 * time.Millisecond

const maxDatagramSize = 1500

// ReceivedPacket is an RTP or RTCP datagram delivered to the media layer,
// tagged with the address it arrived from.
type ReceivedPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// StunHandler processes an inbound datagram that classified as STUN/ICE.
type StunHandler func(data []byte, src *net.UDPAddr)

// DatagramSocket owns a single bound UDP endpoint and demultiplexes every
// inbound datagram by its first byte, per spec: 0..3 is STUN/ICE, 20..63 is
// a DTLS record, 128..191 is RTP/RTCP (RTCP when the second byte is in
// 200..204).
type DatagramSocket struct {
	conn *net.UDPConn

	mu         sync.Mutex
	remoteAddr *net.UDPAddr
	adopting   bool // true once the selected pair is in place; enables NAT-rebind auto-adoption

	stunHandler StunHandler

	dtlsQueue  chan []byte
	mediaQueue chan ReceivedPacket

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDatagramSocket binds a UDP endpoint on the given local address (host
// with no port, or "" to listen on all interfaces with an ephemeral port).
func NewDatagramSocket(laddr string) (*DatagramSocket, error) {
	addr, err := net.ResolveUDPAddr("udp4", laddr+":0")
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return &DatagramSocket{
		conn:       conn,
		dtlsQueue:  make(chan []byte, 64),
		mediaQueue: make(chan ReceivedPacket, 64),
		closed:     make(chan struct{}),
	}, nil
}

func (s *DatagramSocket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// SetStunHandler registers the IceAgent's inbound STUN/ICE callback.
func (s *DatagramSocket) SetStunHandler(h StunHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stunHandler = h
}

// DtlsQueue delivers classified DTLS record datagrams to the DtlsSession.
func (s *DatagramSocket) DtlsQueue() <-chan []byte {
	return s.dtlsQueue
}

// MediaQueue delivers classified RTP/RTCP datagrams to the media receiver.
func (s *DatagramSocket) MediaQueue() <-chan ReceivedPacket {
	return s.mediaQueue
}

// AdoptRemote records the ICE-selected remote address as the destination
// for Send, and enables NAT-rebind auto-adoption on subsequent receives.
func (s *DatagramSocket) AdoptRemote(addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteAddr = addr
	s.adopting = true
}

// Send writes to the learned remote address. Calling Send before a remote
// address has been adopted is a fatal connection error.
func (s *DatagramSocket) Send(b []byte) error {
	s.mu.Lock()
	addr := s.remoteAddr
	s.mu.Unlock()
	if addr == nil {
		return ErrNoRemote
	}
	_, err := s.conn.WriteToUDP(b, addr)
	return err
}

// SendTo writes directly to an explicit address, used during gathering and
// connectivity checks before any pair has been selected.
func (s *DatagramSocket) SendTo(b []byte, addr *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(b, addr)
	return err
}

// Run drives the receive loop until ctx is done or the socket is closed.
func (s *DatagramSocket) Run(ctx context.Context) {
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.closed:
			default:
				log.Debug("read loop exiting: %v", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		s.mu.Lock()
		if s.adopting && (s.remoteAddr == nil || !addrEqual(s.remoteAddr, addr)) {
			// Survive NAT rebinds: trust the address a packet actually
			// arrived from once we have a selected pair.
			log.Debug("adopting new remote address %s (was %s)", addr, s.remoteAddr)
			s.remoteAddr = addr
		}
		handler := s.stunHandler
		s.mu.Unlock()

		switch classify(data) {
		case classSTUN:
			if handler != nil {
				handler(data, addr)
			}
		case classDTLS:
			select {
			case s.dtlsQueue <- data:
			default:
				log.Warn("dropping DTLS datagram, reader not keeping up")
			}
		case classRTP, classRTCP:
			select {
			case s.mediaQueue <- ReceivedPacket{Data: data, Addr: addr}:
			default:
				log.Warn("dropping media datagram, reader not keeping up")
			}
		default:
			log.Debug("dropping unclassified datagram (first byte %d)", data[0])
		}
	}
}

func (s *DatagramSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.conn.Close()
}

type classification int

const (
	classUnknown classification = iota
	classSTUN
	classDTLS
	classRTP
	classRTCP
)

func classify(b []byte) classification {
	if len(b) == 0 {
		return classUnknown
	}
	switch {
	case b[0] <= 3:
		return classSTUN
	case b[0] >= 20 && b[0] <= 63:
		return classDTLS
	case b[0] >= 128 && b[0] <= 191:
		if len(b) > 1 && b[1] >= 200 && b[1] <= 204 {
			return classRTCP
		}
		return classRTP
	default:
		return classUnknown
	}
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
