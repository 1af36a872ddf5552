// Package signaling implements the line-framed TLS text protocol used for
// rendezvous: user registration/login, presence, and call setup (SDP offer/
// answer and ICE candidate relay) between two peers that don't yet have a
// direct connection to exchange that information over.
package signaling

import (
	"strings"

	"github.com/roomrtc/corertc/internal/logging"
)

var log = logging.DefaultLogger.WithTag("signaling")

// Message is one line of the wire protocol:
//
//	TYPE|key:value|key:value|...\n
//
// Fields are split on '|', and each key from its value at the first ':', so
// a value may contain ':' but never '|' or a newline. Values that can carry
// those (multi-line SDP blobs) are encoded by the caller before being placed
// in a field; cmd/corertc-peer base64-encodes its "sdp" values.
type Message struct {
	Type   string
	Fields map[string]string
}

// NewMessage builds a Message from a type and inline key/value pairs, e.g.
// NewMessage("LOGIN", "username", "alice", "password", "hunter2").
func NewMessage(msgType string, kv ...string) Message {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return Message{Type: msgType, Fields: fields}
}

// Get returns a field's value, or "" if absent.
func (m Message) Get(key string) string {
	return m.Fields[key]
}

// ParseMessage parses one line of the wire protocol. The type field is
// always present, even if empty; a line with no pipes is a bare type with no
// fields (e.g. "LOGOUT_SUCCESS").
func ParseMessage(line string) Message {
	parts := strings.Split(line, "|")
	m := Message{Type: parts[0], Fields: map[string]string{}}
	for _, part := range parts[1:] {
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		m.Fields[key] = value
	}
	return m
}

// Encode renders m back into one wire-protocol line, without the trailing
// newline.
func (m Message) Encode() string {
	var b strings.Builder
	b.WriteString(m.Type)
	for k, v := range m.Fields {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
