package ice

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want classification
	}{
		{"stun", []byte{0, 1, 0, 0}, classSTUN},
		{"stun-upper", []byte{3, 1, 0, 0}, classSTUN},
		{"dtls", []byte{20, 0, 0, 0}, classDTLS},
		{"dtls-upper", []byte{63, 0, 0, 0}, classDTLS},
		{"rtp", []byte{128, 96, 0, 0}, classRTP},
		{"rtcp", []byte{128, 200, 0, 0}, classRTCP},
		{"rtcp-upper", []byte{191, 204, 0, 0}, classRTCP},
		{"unknown", []byte{100, 0}, classUnknown},
		{"empty", []byte{}, classUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.data); got != c.want {
				t.Errorf("classify(%v) = %v, want %v", c.data, got, c.want)
			}
		})
	}
}
