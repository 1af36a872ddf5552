// Package dtls adapts the real pion/dtls handshake and record layer onto an
// ice.DatagramSocket's demultiplexed DTLS queue, and derives the SrtpContext
// key material per the DtlsSession contract.
package dtls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	pion "github.com/pion/dtls/v3"

	"github.com/roomrtc/corertc/internal/ice"
	"github.com/roomrtc/corertc/internal/logging"
)

var log = logging.DefaultLogger.WithTag("dtls")

// exportedKeyLen is the number of bytes exported under the
// EXTRACTOR-dtls_srtp label and handed to SrtpContext directly as its key
// (this system does not split into separate RTP/RTCP key/salt pairs).
const exportedKeyLen = 32

// Session wraps a completed DTLS connection.
type Session struct {
	conn *pion.Conn
	key  []byte
}

// Handshake drives a DTLS handshake to completion or until ctx is done.
// controlling peers act as the DTLS client, controlled peers as the server,
// mirroring the controlling/client mapping SctpAssociation uses.
func Handshake(ctx context.Context, socket *ice.DatagramSocket, cert tls.Certificate, role ice.Role, remoteFingerprint string) (*Session, error) {
	pc := newPacketConn(socket)

	config := &pion.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("dtls: peer presented no certificate")
			}
			if got := fingerprintDER(rawCerts[0]); got != remoteFingerprint {
				return fmt.Errorf("dtls: fingerprint mismatch: got %s want %s", got, remoteFingerprint)
			}
			return nil
		},
	}

	type result struct {
		conn *pion.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var conn *pion.Conn
		var err error
		if role == ice.Controlling {
			conn, err = pion.Client(pc, config)
		} else {
			conn, err = pion.Server(pc, config)
		}
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("dtls: handshake failed: %w", r.err)
		}
		key, err := r.conn.ExportKeyingMaterial("EXTRACTOR-dtls_srtp", nil, exportedKeyLen)
		if err != nil {
			r.conn.Close()
			return nil, fmt.Errorf("dtls: export keying material: %w", err)
		}
		log.Info("dtls handshake complete, role=%v", role)
		return &Session{conn: r.conn, key: key}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dtls: handshake timed out: %w", ctx.Err())
	}
}

// SrtpKey returns the 32 bytes exported for SrtpContext construction.
func (s *Session) SrtpKey() []byte { return s.key }

// Conn exposes the underlying connection for the SCTP pump loop to read and
// write application datagrams over.
func (s *Session) Conn() *pion.Conn { return s.conn }

func (s *Session) Close() error { return s.conn.Close() }
