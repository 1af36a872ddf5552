package ice

import "fmt"

// State is a candidate pair's connectivity-check state.
type State int

const (
	Waiting State = iota
	InProgress
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case InProgress:
		return "InProgress"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return "?"
	}
}

// Pair is a local/remote candidate pair under connectivity check, per
// spec §3.
type Pair struct {
	Local, Remote Candidate
	State         State

	// attempt is not updated by the agent; Agent.check paces a check's
	// attempts by ranging over checkRetries.
	attempt int
}

func newPair(local, remote Candidate) *Pair {
	return &Pair{Local: local, Remote: remote, State: Waiting}
}

func (p *Pair) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d [%s]", p.Local.IP, p.Local.Port, p.Remote.IP, p.Remote.Port, p.State)
}

// priority computes the pair priority per spec §3:
// P = 2^32·min(G,D) + 2·max(G,D) + (G>D?1:0), where G is the controlling
// side's candidate priority and D the controlled side's.
func (p *Pair) priority(localIsControlling bool) uint64 {
	var g, d uint64
	if localIsControlling {
		g, d = uint64(p.Local.Priority), uint64(p.Remote.Priority)
	} else {
		g, d = uint64(p.Remote.Priority), uint64(p.Local.Priority)
	}
	lo, hi := g, d
	if hi < lo {
		lo, hi = hi, lo
	}
	var b uint64
	if g > d {
		b = 1
	}
	return lo<<32 + hi<<1 + b
}
