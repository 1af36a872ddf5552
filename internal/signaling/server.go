package signaling

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// clientConn is one connected, not-yet-necessarily-authenticated signaling
// client.
type clientConn struct {
	conn     net.Conn
	send     chan string
	username string // set once LOGIN succeeds
}

func (c *clientConn) sendMessage(msg Message) {
	select {
	case c.send <- msg.Encode():
	default:
		// Slow reader; drop rather than block the dispatch loop. A client
		// that can't keep up with its own signaling traffic is already in
		// trouble.
		log.Warn("dropping message to %s: send buffer full", c.username)
	}
}

// Server is the line-framed TLS signaling server: user registry, presence,
// and call setup/teardown (spec §6).
type Server struct {
	Addr  string
	Users *UserStore

	mu          sync.RWMutex
	clients     map[string]*clientConn // username -> connection
	statuses    map[string]UserStatus
	activeCalls map[string]string // caller -> callee, both directions inserted
}

// NewServer returns a Server listening on addr, backed by the given user
// store.
func NewServer(addr string, users *UserStore) *Server {
	return &Server{
		Addr:        addr,
		Users:       users,
		clients:     map[string]*clientConn{},
		statuses:    map[string]UserStatus{},
		activeCalls: map[string]string{},
	}
}

// ListenAndServe accepts TLS connections on s.Addr, handling each on its own
// goroutine, until the listener errors (e.g. on Close).
func (s *Server) ListenAndServe(cert tls.Certificate) error {
	ln, err := tls.Listen("tcp", s.Addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return fmt.Errorf("signaling: listen: %w", err)
	}
	defer ln.Close()

	log.Info("signaling server listening on %s", s.Addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	log.Info("connection from %s", conn.RemoteAddr())

	c := &clientConn{conn: conn, send: make(chan string, 32)}
	defer s.disconnect(c)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case msg, ok := <-c.send:
				if !ok {
					return
				}
				if _, err := conn.Write([]byte(msg + "\n")); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !s.dispatch(c, ParseMessage(line)) {
			return
		}
	}
}

func (s *Server) disconnect(c *clientConn) {
	c.conn.Close()
	if c.username == "" {
		return
	}

	s.mu.Lock()
	delete(s.clients, c.username)
	other, hadCall := s.activeCalls[c.username]
	delete(s.activeCalls, c.username)
	delete(s.activeCalls, other)
	s.mu.Unlock()

	s.setStatus(c.username, StatusDisconnected)
	log.Warn("%s disconnected", c.username)

	if hadCall {
		s.setStatus(other, StatusAvailable)
		s.sendTo(other, NewMessage("CALL_ENDED", "from", c.username))
	}
}

// dispatch handles one parsed message, returning false if the connection
// should be closed.
func (s *Server) dispatch(c *clientConn, msg Message) bool {
	switch msg.Type {
	case "REGISTER":
		s.handleRegister(c, msg)
	case "LOGIN":
		s.handleLogin(c, msg)
	case "LOGOUT":
		s.handleLogout(c)
		return false
	case "GET_USERS":
		s.handleGetUsers(c)
	case "CALL_OFFER":
		s.handleCallOffer(c, msg)
	case "CALL_ANSWER":
		s.handleCallAnswer(c, msg)
	case "CALL_REJECT":
		s.handleCallReject(c, msg)
	case "CALL_END":
		s.handleCallEnd(c, msg)
	case "ICE_CANDIDATE":
		s.handleIceCandidate(c, msg)
	default:
		c.sendMessage(NewMessage("ERROR", "error", "unknown message type: "+msg.Type))
	}
	return true
}

func (s *Server) handleRegister(c *clientConn, msg Message) {
	username, password := msg.Get("username"), msg.Get("password")
	if username == "" {
		c.sendMessage(NewMessage("REGISTER_ERROR", "error", "missing username"))
		return
	}
	if password == "" {
		c.sendMessage(NewMessage("REGISTER_ERROR", "error", "missing password"))
		return
	}

	if err := s.Users.Register(username, password); err != nil {
		c.sendMessage(NewMessage("REGISTER_ERROR", "error", err.Error()))
		log.Error("registering %s: %v", username, err)
		return
	}
	c.sendMessage(NewMessage("REGISTER_SUCCESS", "message", "User registered successfully"))
}

func (s *Server) handleLogin(c *clientConn, msg Message) {
	username, password := msg.Get("username"), msg.Get("password")
	if username == "" {
		c.sendMessage(NewMessage("LOGIN_ERROR", "error", "missing username"))
		return
	}
	if password == "" {
		c.sendMessage(NewMessage("LOGIN_ERROR", "error", "missing password"))
		return
	}

	if err := s.Users.Authenticate(username, password); err != nil {
		c.sendMessage(NewMessage("LOGIN_ERROR", "error", err.Error()))
		return
	}

	s.mu.Lock()
	if _, connected := s.clients[username]; connected {
		s.mu.Unlock()
		c.sendMessage(NewMessage("LOGIN_ERROR", "error", "user already connected"))
		return
	}
	c.username = username
	s.clients[username] = c
	s.mu.Unlock()

	s.setStatus(username, StatusAvailable)
	c.sendMessage(NewMessage("LOGIN_SUCCESS", "message", "Login success"))
	log.Info("%s logged in", username)
}

func (s *Server) handleLogout(c *clientConn) {
	if c.username == "" {
		return
	}
	s.mu.Lock()
	delete(s.clients, c.username)
	s.mu.Unlock()

	s.setStatus(c.username, StatusDisconnected)
	c.sendMessage(NewMessage("LOGOUT_SUCCESS"))
	log.Info("%s logged out", c.username)
}

func (s *Server) handleGetUsers(c *clientConn) {
	s.mu.RLock()
	statuses := make(map[string]UserStatus, len(s.statuses))
	for u, st := range s.statuses {
		statuses[u] = st
	}
	s.mu.RUnlock()

	fields := make([]string, 0, len(statuses)*2)
	for u, st := range statuses {
		fields = append(fields, u, string(st))
	}
	c.sendMessage(NewMessage("USER_LIST", fields...))
}

func (s *Server) handleCallOffer(c *clientConn, msg Message) {
	if c.username == "" {
		return
	}
	to := msg.Get("to")
	if to == "" {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "missing destination"))
		return
	}
	sdp := msg.Get("sdp")
	if sdp == "" {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "missing sdp"))
		return
	}
	srtpKey := msg.Get("srtp_key")

	s.mu.RLock()
	status, known := s.statuses[to]
	callee, connected := s.clients[to]
	s.mu.RUnlock()

	if !known {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "user does not exist"))
		return
	}
	if status != StatusAvailable {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "user not available"))
		return
	}
	if !connected {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "user not connected"))
		return
	}

	s.setStatus(c.username, StatusBusy)
	s.setStatus(to, StatusBusy)
	s.mu.Lock()
	s.activeCalls[c.username] = to
	s.activeCalls[to] = c.username
	s.mu.Unlock()

	callee.sendMessage(NewMessage("INCOMING_CALL", "from", c.username, "sdp", sdp, "srtp_key", srtpKey))
	log.Info("%s called %s", c.username, to)
}

func (s *Server) handleCallAnswer(c *clientConn, msg Message) {
	if c.username == "" {
		return
	}
	to := msg.Get("to")
	if to == "" {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "missing destination"))
		return
	}
	accept := msg.Get("accept") == "true"
	sdp := msg.Get("sdp")
	srtpKey := msg.Get("srtp_key")

	s.mu.RLock()
	caller, connected := s.clients[to]
	s.mu.RUnlock()
	if !connected {
		return
	}

	if accept {
		if sdp == "" {
			caller.sendMessage(NewMessage("CALL_REJECTED", "from", "server"))
			return
		}
		s.setStatus(c.username, StatusBusy)
		caller.sendMessage(NewMessage("CALL_ACCEPTED", "from", c.username, "sdp", sdp, "srtp_key", srtpKey))
		log.Info("%s accepted the call", c.username)
		return
	}

	caller.sendMessage(NewMessage("CALL_REJECTED", "from", c.username))
	s.setStatus(to, StatusAvailable)
	s.setStatus(c.username, StatusAvailable)
	s.mu.Lock()
	delete(s.activeCalls, to)
	delete(s.activeCalls, c.username)
	s.mu.Unlock()
	log.Info("%s rejected the call", c.username)
}

func (s *Server) handleCallReject(c *clientConn, msg Message) {
	if c.username == "" {
		return
	}
	to := msg.Get("to")
	if to == "" {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "missing destination"))
		return
	}

	s.mu.RLock()
	caller, connected := s.clients[to]
	s.mu.RUnlock()
	if connected {
		caller.sendMessage(NewMessage("CALL_REJECTED", "from", c.username))
	}

	s.setStatus(to, StatusAvailable)
	s.setStatus(c.username, StatusAvailable)
	s.mu.Lock()
	delete(s.activeCalls, to)
	delete(s.activeCalls, c.username)
	s.mu.Unlock()
	log.Info("%s rejected the call from %s", c.username, to)
}

func (s *Server) handleCallEnd(c *clientConn, msg Message) {
	if c.username == "" {
		return
	}
	to := msg.Get("to")
	if to == "" {
		c.sendMessage(NewMessage("CALL_ERROR", "error", "missing destination"))
		return
	}

	s.sendTo(to, NewMessage("CALL_ENDED", "from", c.username))

	s.setStatus(c.username, StatusAvailable)
	s.setStatus(to, StatusAvailable)
	s.mu.Lock()
	delete(s.activeCalls, c.username)
	delete(s.activeCalls, to)
	s.mu.Unlock()
	log.Info("%s ended the call with %s", c.username, to)
}

func (s *Server) handleIceCandidate(c *clientConn, msg Message) {
	if c.username == "" {
		return
	}
	to := msg.Get("to")
	if to == "" {
		c.sendMessage(NewMessage("ERROR", "error", "missing destination"))
		return
	}
	candidate := msg.Get("candidate")
	if candidate == "" {
		c.sendMessage(NewMessage("ERROR", "error", "missing candidate"))
		return
	}

	s.sendTo(to, NewMessage("ICE_CANDIDATE", "from", c.username, "candidate", candidate))
}

// setStatus updates a user's presence and broadcasts USER_STATUS_CHANGED to
// every connected client.
func (s *Server) setStatus(username string, status UserStatus) {
	s.mu.Lock()
	s.statuses[username] = status
	clients := make([]*clientConn, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	msg := NewMessage("USER_STATUS_CHANGED", "username", username, "status", string(status))
	for _, c := range clients {
		c.sendMessage(msg)
	}
	log.Debug("%s -> %s", username, status)
}

// sendTo delivers msg to username if currently connected; it's a no-op
// otherwise.
func (s *Server) sendTo(username string, msg Message) {
	s.mu.RLock()
	c, connected := s.clients[username]
	s.mu.RUnlock()
	if connected {
		c.sendMessage(msg)
	}
}
