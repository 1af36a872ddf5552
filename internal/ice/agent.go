package ice

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"
)

// checkRetries are the fixed retry delays spec §4.3/§5 prescribe for a
// connectivity check: up to 3 attempts at 500/1000/1500 ms.
var checkRetries = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 1500 * time.Millisecond}

// Agent implements spec §4.3: gather, prioritize, check, select. It supports
// exactly one ICE component, IPv4 only (spec §9).
type Agent struct {
	session    *Session
	socket     *DatagramSocket
	stunServer string

	mu       sync.Mutex
	pairs    []*Pair
	selected *Pair
	checkErr error
	pending  map[[12]byte]chan *stunMessage

	doneOnce sync.Once
	doneCh   chan struct{}
}

// NewAgent creates an agent bound to socket, which must already be running
// its receive loop (DatagramSocket.Run). stunServer is the default public
// STUN server queried during gathering.
func NewAgent(role Role, socket *DatagramSocket, stunServer string) *Agent {
	a := &Agent{
		session:    newSession(role),
		socket:     socket,
		stunServer: stunServer,
		pending:    make(map[[12]byte]chan *stunMessage),
		doneCh:     make(chan struct{}),
	}
	socket.SetStunHandler(a.handleInbound)
	return a
}

func (a *Agent) Session() *Session { return a.session }

// Configure installs the remote ufrag/pwd parsed from the peer's SDP.
func (a *Agent) Configure(remoteUfrag, remotePwd string) {
	a.session.RemoteUfrag = remoteUfrag
	a.session.RemotePwd = remotePwd
}

// Gather emits a Host candidate for the socket's local address, then queries
// the default STUN server for a server-reflexive mapping. Duplicate
// suppression is by (address, port, type), per spec §4.3.
func (a *Agent) Gather(ctx context.Context) ([]Candidate, error) {
	host := newHostCandidate(a.socket.LocalAddr())
	a.addLocalCandidate(host)

	mapped, err := a.queryStunServer(ctx)
	if err != nil {
		log.Warn("STUN server query failed, continuing with host candidate only: %v", err)
	} else if !mapped.IP.Equal(host.IP) || mapped.Port != host.Port {
		a.addLocalCandidate(newSrflxCandidate(mapped, a.stunServer))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Candidate(nil), a.session.LocalCandidates...), nil
}

func (a *Agent) addLocalCandidate(c Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.session.LocalCandidates {
		if existing.key() == c.key() {
			return
		}
	}
	a.session.LocalCandidates = append(a.session.LocalCandidates, c)
}

// AddRemoteCandidates installs the remote candidate set (parsed from the
// peer's SDP) and forms the full local × remote pairing, per spec §4.3.
func (a *Agent) AddRemoteCandidates(candidates []Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session.RemoteCandidates = append(a.session.RemoteCandidates, candidates...)

	existing := make(map[string]bool, len(a.pairs))
	for _, p := range a.pairs {
		existing[p.Local.key()+"|"+p.Remote.key()] = true
	}
	for _, local := range a.session.LocalCandidates {
		for _, remote := range candidates {
			key := local.key() + "|" + remote.key()
			if existing[key] {
				continue
			}
			a.pairs = append(a.pairs, newPair(local, remote))
			existing[key] = true
		}
	}
}

// StartConnectivityChecks begins checking pairs in priority order on a
// background worker, per spec §4.3's concurrency contract.
func (a *Agent) StartConnectivityChecks(ctx context.Context) error {
	a.mu.Lock()
	if len(a.pairs) == 0 {
		a.mu.Unlock()
		return ErrNoPairs
	}
	pairs := append([]*Pair(nil), a.pairs...)
	localIsControlling := a.session.Role == Controlling
	a.mu.Unlock()

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].priority(localIsControlling) > pairs[j].priority(localIsControlling)
	})

	go a.runChecks(ctx, pairs)
	return nil
}

func (a *Agent) runChecks(ctx context.Context, pairs []*Pair) {
	succeeded := false
	for _, p := range pairs {
		select {
		case <-ctx.Done():
			return
		case <-a.doneCh:
			return
		default:
		}

		p.State = InProgress
		if a.check(ctx, p) {
			p.State = Succeeded
			succeeded = true
			a.considerSelecting(p)
			if a.session.Role == Controlling {
				// "The controlling agent selects the first Succeeded pair
				// and stops."
				return
			}
		} else {
			p.State = Failed
		}
	}

	if a.session.Role == Controlling && !succeeded {
		a.mu.Lock()
		a.checkErr = ErrNoViablePair
		a.mu.Unlock()
	}
}

// considerSelecting records p as the selected pair if none is set yet.
// Controlling stops the whole checklist on selection; Controlled keeps
// answering inbound checks but sticks with the first pair it records.
func (a *Agent) considerSelecting(p *Pair) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selected != nil {
		return
	}
	a.selected = p
	a.socket.AdoptRemote(p.Remote.Addr())
	a.doneOnce.Do(func() { close(a.doneCh) })
	log.Info("selected candidate pair: %s", p)
}

// check runs one connectivity check for p: up to 3 attempts at
// 500/1000/1500 ms, returning true on a matched Binding Success response.
func (a *Agent) check(ctx context.Context, p *Pair) bool {
	for _, delay := range checkRetries {
		req := newBindingRequest()
		ch := make(chan *stunMessage, 1)

		a.mu.Lock()
		a.pending[req.transactionID] = ch
		a.mu.Unlock()

		if err := a.socket.SendTo(req.encode(), p.Remote.Addr()); err != nil {
			log.Warn("failed to send connectivity check to %s: %v", p.Remote.Addr(), err)
		}

		var ok bool
		select {
		case <-ch:
			ok = true
		case <-time.After(delay):
		case <-ctx.Done():
			a.removePending(req.transactionID)
			return false
		}

		a.removePending(req.transactionID)
		if ok {
			return true
		}
	}
	return false
}

func (a *Agent) removePending(id [12]byte) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}

// queryStunServer sends a Binding Request to the default STUN server and
// returns its XOR-MAPPED-ADDRESS.
func (a *Agent) queryStunServer(ctx context.Context) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp4", a.stunServer)
	if err != nil {
		return nil, err
	}

	req := newBindingRequest()
	ch := make(chan *stunMessage, 1)
	a.mu.Lock()
	a.pending[req.transactionID] = ch
	a.mu.Unlock()
	defer a.removePending(req.transactionID)

	if err := a.socket.SendTo(req.encode(), addr); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.mappedAddr == nil {
			return nil, ErrMalformedStun
		}
		return resp.mappedAddr, nil
	case <-time.After(5 * time.Second):
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleInbound is registered with the DatagramSocket as the STUN/ICE
// handler. Binding Requests are answered immediately, inline, with an
// XOR-MAPPED-ADDRESS success response (symmetric STUN responder behavior).
func (a *Agent) handleInbound(data []byte, src *net.UDPAddr) {
	msg, err := parseStunMessage(data)
	if err != nil {
		log.Debug("dropping malformed STUN datagram from %s: %v", src, err)
		return
	}
	if msg == nil {
		return
	}

	if msg.isRequest() {
		resp := newBindingSuccess(msg.transactionID, src)
		if err := a.socket.SendTo(resp.encode(), src); err != nil {
			log.Warn("failed to send STUN response to %s: %v", src, err)
		}

		if p := a.findPairByRemote(src); p != nil {
			p.State = Succeeded
			if a.session.Role == Controlled {
				a.considerSelecting(p)
			}
		}
		return
	}

	// Binding Success/Error response to one of our own checks.
	a.mu.Lock()
	ch, ok := a.pending[msg.transactionID]
	a.mu.Unlock()
	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (a *Agent) findPairByRemote(addr *net.UDPAddr) *Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.pairs {
		if p.Remote.IP.Equal(addr.IP) && p.Remote.Port == addr.Port {
			return p
		}
	}
	return nil
}

func (a *Agent) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected != nil
}

func (a *Agent) SelectedPair() *Pair {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// CheckError returns the terminal error recorded by runChecks, if any
// (ErrNoViablePair once all pairs have failed for the controlling agent).
func (a *Agent) CheckError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkErr
}
