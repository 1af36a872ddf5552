package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairPriorityTieBreak(t *testing.T) {
	same := Candidate{Priority: 1000}
	p := &Pair{Local: same, Remote: same}

	// spec §8 boundary: G == D -> tie broken by G>D?1:0 == 0.
	assert.Equal(t, uint64(1000)<<32+uint64(1000)<<1, p.priority(true))
}

func TestPairPriorityIsTotalOrder(t *testing.T) {
	low := Candidate{Priority: 10}
	high := Candidate{Priority: 20}
	p1 := &Pair{Local: low, Remote: high}
	p2 := &Pair{Local: high, Remote: low}

	// Same underlying (G,D) multiset from the controlling agent's
	// perspective must yield the same priority regardless of local/remote
	// assignment.
	assert.Equal(t, p1.priority(true), p2.priority(false))
}

func TestNewPairDefaultsToWaiting(t *testing.T) {
	p := newPair(Candidate{IP: net.IPv4(127, 0, 0, 1)}, Candidate{IP: net.IPv4(127, 0, 0, 1)})
	assert.Equal(t, Waiting, p.State)
}
