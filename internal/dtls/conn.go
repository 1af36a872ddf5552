package dtls

import (
	"net"
	"time"

	"github.com/roomrtc/corertc/internal/ice"
)

// packetConn adapts an ice.DatagramSocket's demultiplexed DTLS datagram
// queue, plus the socket's learned remote address, into a net.Conn so it can
// be driven by pion/dtls. Reads carry left-over bytes across calls since
// pion/dtls may ask for chunk sizes smaller than a full datagram.
type packetConn struct {
	socket   *ice.DatagramSocket
	leftover []byte
	deadline time.Time
}

func newPacketConn(socket *ice.DatagramSocket) *packetConn {
	return &packetConn{socket: socket}
}

func (c *packetConn) Read(b []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(b, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}

	timeout := 200 * time.Millisecond
	if !c.deadline.IsZero() {
		if d := time.Until(c.deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return 0, errTimeout{}
	}

	select {
	case datagram, ok := <-c.socket.DtlsQueue():
		if !ok {
			return 0, net.ErrClosed
		}
		n := copy(b, datagram)
		if n < len(datagram) {
			c.leftover = datagram[n:]
		}
		return n, nil
	case <-time.After(timeout):
		return 0, errTimeout{}
	}
}

func (c *packetConn) Write(b []byte) (int, error) {
	if err := c.socket.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *packetConn) Close() error                       { return nil }
func (c *packetConn) LocalAddr() net.Addr                { return c.socket.LocalAddr() }
func (c *packetConn) RemoteAddr() net.Addr               { return c.socket.LocalAddr() }
func (c *packetConn) SetDeadline(t time.Time) error      { c.deadline = t; return nil }
func (c *packetConn) SetReadDeadline(t time.Time) error  { c.deadline = t; return nil }
func (c *packetConn) SetWriteDeadline(t time.Time) error { return nil }

type errTimeout struct{}

func (errTimeout) Error() string   { return "dtls: read timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
