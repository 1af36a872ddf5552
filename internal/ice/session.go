package ice

import (
	"crypto/rand"
)

const ufragChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomToken(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	out := make([]byte, n)
	for i, v := range b {
		out[i] = ufragChars[int(v)%len(ufragChars)]
	}
	return string(out)
}

// Role is which side of the ICE exchange an agent plays; see spec §3 and
// §4.3's note that role-conflict resolution (RFC 5245 §5.2) is out of scope.
type Role int

const (
	Controlling Role = iota
	Controlled
)

// Session holds the mutable state of one ICE exchange: credentials,
// candidates, pairs, and the (at most one) selected pair. Exported so
// PeerConnection can read localCandidates/remoteCredentials without reaching
// into Agent internals.
type Session struct {
	// Local credentials, generated once at session creation (8-char ufrag,
	// 24-char password per spec §3).
	Ufrag string
	Pwd   string

	// Remote credentials, populated once the remote SDP has been parsed.
	RemoteUfrag string
	RemotePwd   string

	Role Role

	LocalCandidates  []Candidate
	RemoteCandidates []Candidate
}

func newSession(role Role) *Session {
	return &Session{
		Ufrag: randomToken(8),
		Pwd:   randomToken(24),
		Role:  role,
	}
}
