package signaling

import "testing"

func TestParseMessageBareType(t *testing.T) {
	m := ParseMessage("LOGOUT_SUCCESS")
	if m.Type != "LOGOUT_SUCCESS" {
		t.Fatalf("got type %q", m.Type)
	}
	if len(m.Fields) != 0 {
		t.Fatalf("expected no fields, got %v", m.Fields)
	}
}

func TestParseMessageFields(t *testing.T) {
	m := ParseMessage("CALL_OFFER|to:bob|sdp:v=0")
	if m.Type != "CALL_OFFER" {
		t.Fatalf("got type %q", m.Type)
	}
	if got := m.Get("to"); got != "bob" {
		t.Fatalf("to = %q", got)
	}
	if got := m.Get("sdp"); got != "v=0" {
		t.Fatalf("sdp = %q", got)
	}
}

func TestMessageEncodeParseRoundTrip(t *testing.T) {
	orig := NewMessage("INCOMING_CALL", "from", "alice", "sdp", "v=0", "srtp_key", "")
	parsed := ParseMessage(orig.Encode())
	if parsed.Type != "INCOMING_CALL" {
		t.Fatalf("type = %q", parsed.Type)
	}
	if parsed.Get("from") != "alice" || parsed.Get("sdp") != "v=0" {
		t.Fatalf("fields mismatch: %v", parsed.Fields)
	}
}

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"alice", true},
		{"alice_42", true},
		{"", false},
		{"has space", false},
		{"has:colon", false},
		{"has|pipe", false},
	}
	for _, c := range cases {
		err := ValidateUsername(c.in)
		if (err == nil) != c.valid {
			t.Errorf("ValidateUsername(%q): err=%v, want valid=%v", c.in, err, c.valid)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if err := ValidatePassword("has:colon"); err == nil {
		t.Fatal("expected error for ':' in password")
	}
	if err := ValidatePassword("hunter2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
