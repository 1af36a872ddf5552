// Package signaling's WebBridge is an optional, browser-facing front end:
// a local webserver that a browser tab connects to directly over a
// websocket, instead of speaking the line-framed TLS protocol. It's a demo
// convenience for cmd/corertc-peer, not part of the core rendezvous path.
package signaling

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roomrtc/corertc/internal/ice"
)

// BridgeSession is one browser tab's call session, handed to the
// WebBridge's handler callback.
type BridgeSession struct {
	Offer            chan string
	RemoteCandidates chan ice.Candidate

	SendAnswer         func(sdp string) error
	SendLocalCandidate func(c ice.Candidate) error
}

// WebBridge serves a browser a minimal signaling page over HTTP/websocket.
type WebBridge struct {
	Addr    string
	Handler func(*BridgeSession)

	server   *http.Server
	upgrader websocket.Upgrader
}

// NewWebBridge returns a WebBridge listening on addr. handler is invoked,
// on its own goroutine, once per connected browser tab.
func NewWebBridge(addr string, handler func(*BridgeSession)) *WebBridge {
	b := &WebBridge{Addr: addr, Handler: handler}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWebsocket)
	b.server = &http.Server{Addr: addr, Handler: mux}
	return b
}

// ListenAndServe blocks serving HTTP until the bridge is shut down.
func (b *WebBridge) ListenAndServe() error {
	log.Info("web signaling bridge listening on %s", b.Addr)
	return b.server.ListenAndServe()
}

// Shutdown stops the bridge's HTTP server.
func (b *WebBridge) Shutdown() error {
	return b.server.Shutdown(context.Background())
}

// handleWebsocket speaks a small JSON protocol over one websocket
// connection:
//
//	{ "type": "offer", "sdp": "..." }
//	{ "type": "iceCandidate", "candidate": "..." }
//
// An iceCandidate message with no "candidate" field signals end-of-trickle.
func (b *WebBridge) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade: %v", err)
		return
	}
	defer ws.Close()

	offerCh := make(chan string, 1)
	candidateCh := make(chan ice.Candidate, 8)
	session := &BridgeSession{
		Offer:            offerCh,
		RemoteCandidates: candidateCh,
		SendAnswer: func(sdp string) error {
			return ws.WriteJSON(map[string]string{"type": "answer", "sdp": sdp})
		},
		SendLocalCandidate: func(c ice.Candidate) error {
			return ws.WriteJSON(map[string]string{"type": "iceCandidate", "candidate": c.SdpLine()})
		},
	}

	go b.Handler(session)

	for {
		var msg map[string]string
		if err := ws.ReadJSON(&msg); err != nil {
			log.Warn("reading websocket message: %v", err)
			close(candidateCh)
			return
		}

		switch msg["type"] {
		case "offer":
			offerCh <- msg["sdp"]
		case "iceCandidate":
			line, ok := msg["candidate"]
			if !ok || line == "" {
				close(candidateCh)
				continue
			}
			c, err := ice.ParseCandidateLine(line)
			if err != nil {
				log.Warn("invalid ICE candidate %q: %v", line, err)
				continue
			}
			candidateCh <- c
		default:
			log.Warn("unexpected websocket message: %v", msg)
		}
	}
}
