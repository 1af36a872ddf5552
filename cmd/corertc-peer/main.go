package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/roomrtc/corertc"
	"github.com/roomrtc/corertc/internal/ice"
	"github.com/roomrtc/corertc/internal/logging"
	"github.com/roomrtc/corertc/internal/media"
	"github.com/roomrtc/corertc/internal/signaling"
)

var log = logging.DefaultLogger.WithTag("corertc-peer")

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagUsername == "" || flagPassword == "" {
		fmt.Fprintln(os.Stderr, "--username and --password are required")
		os.Exit(1)
	}

	conn, err := tls.Dial("tcp", flagServer, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		log.Error("dial %s: %v", flagServer, err)
		os.Exit(1)
	}
	defer conn.Close()

	client := newSignalingClient(conn)
	if err := client.login(flagUsername, flagPassword); err != nil {
		log.Error("login: %v", err)
		os.Exit(1)
	}
	log.Info("logged in as %s", flagUsername)

	cfg := corertc.Config{}
	if flagInput != "" {
		src, err := media.OpenSource("fileloop:" + flagInput)
		if err != nil {
			log.Error("open video source: %v", err)
			os.Exit(1)
		}
		cfg.LocalVideo = src.(media.H264Source)
	}
	if flagMute {
		cfg.LocalAudio = media.NewMuteAudioSource()
	} else if flagAudio != "" {
		src, err := media.OpenSource("pcmloop:" + flagAudio)
		if err != nil {
			log.Error("open audio source: %v", err)
			os.Exit(1)
		}
		cfg.LocalAudio = src.(media.AudioSource)
	}
	videoSink, err := media.NewFileSink("received-video.h264")
	if err != nil {
		log.Error("open video sink: %v", err)
		os.Exit(1)
	}
	defer videoSink.Close()
	cfg.RemoteVideo = videoSink

	audioSink, err := media.NewFileSink("received-audio.pcm")
	if err != nil {
		log.Error("open audio sink: %v", err)
		os.Exit(1)
	}
	defer audioSink.Close()
	cfg.RemoteAudio = audioSink

	ctx := context.Background()

	var pc *corertc.PeerConnection
	var peer string
	if flagCall != "" {
		pc, err = corertc.NewPeerConnection(ctx, ice.Controlling, cfg)
		if err != nil {
			log.Error("new connection: %v", err)
			os.Exit(1)
		}
		peer = flagCall
		if err := placeCall(ctx, client, pc, peer); err != nil {
			log.Error("call %s: %v", peer, err)
			os.Exit(1)
		}
	} else {
		log.Info("waiting for an incoming call")
		pc, peer, err = waitForCall(ctx, client, cfg)
		if err != nil {
			log.Error("incoming call: %v", err)
			os.Exit(1)
		}
	}
	defer pc.Close()

	if err := pc.StartConnectivityChecks(ctx); err != nil {
		log.Error("ice: %v", err)
		os.Exit(1)
	}
	if err := waitConnected(pc, 10*time.Second); err != nil {
		log.Error("ice connect: %v", err)
		os.Exit(1)
	}
	if err := pc.StartDtlsHandshake(ctx, 10*time.Second); err != nil {
		log.Error("dtls: %v", err)
		os.Exit(1)
	}
	log.Info("connected to %s", peer)

	video := corertc.NewMediaPipeline(pc)
	audio := corertc.NewAudioPipeline(pc)
	go func() {
		if err := video.Run(ctx); err != nil {
			log.Warn("video pipeline ended: %v", err)
		}
	}()
	if err := audio.Run(ctx); err != nil {
		log.Warn("audio pipeline ended: %v", err)
	}
}

func waitConnected(pc *corertc.PeerConnection, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pc.SelectedRemoteAddr() != nil {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for a selected ICE pair")
}

func placeCall(ctx context.Context, client *signalingClient, pc *corertc.PeerConnection, to string) error {
	offer, err := pc.CreateOffer(ctx)
	if err != nil {
		return err
	}
	answer, err := client.call(to, offer)
	if err != nil {
		return err
	}
	return pc.SetRemoteDescription(answer)
}

func waitForCall(ctx context.Context, client *signalingClient, cfg corertc.Config) (*corertc.PeerConnection, string, error) {
	from, offer, err := client.waitIncoming()
	if err != nil {
		return nil, "", err
	}
	pc, err := corertc.NewPeerConnection(ctx, ice.Controlled, cfg)
	if err != nil {
		return nil, "", err
	}
	answer, err := pc.ProcessOffer(ctx, offer)
	if err != nil {
		pc.Close()
		return nil, "", err
	}
	if err := client.answer(from, answer); err != nil {
		pc.Close()
		return nil, "", err
	}
	return pc, from, nil
}

// signalingClient speaks the line-framed signaling protocol over a single
// TLS connection, the same REGISTER/LOGIN/CALL_OFFER/CALL_ANSWER exchange
// the signaling server's handlers implement.
type signalingClient struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newSignalingClient(conn net.Conn) *signalingClient {
	return &signalingClient{conn: conn, scanner: bufio.NewScanner(conn)}
}

func (c *signalingClient) send(msg signaling.Message) error {
	_, err := fmt.Fprint(c.conn, msg.Encode()+"\n")
	return err
}

func (c *signalingClient) recv() (signaling.Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return signaling.Message{}, err
		}
		return signaling.Message{}, fmt.Errorf("connection closed")
	}
	return signaling.ParseMessage(c.scanner.Text()), nil
}

func (c *signalingClient) login(username, password string) error {
	if err := c.send(signaling.NewMessage("LOGIN", "username", username, "password", password)); err != nil {
		return err
	}
	msg, err := c.recv()
	if err != nil {
		return err
	}
	if msg.Type != "LOGIN_SUCCESS" {
		return fmt.Errorf("%s: %s", msg.Type, msg.Get("error"))
	}
	return nil
}

// call sends a CALL_OFFER to the given user and blocks for CALL_ACCEPTED or
// CALL_REJECTED, returning the remote answer SDP on acceptance.
//
// The SDP itself is multi-line, and the wire protocol's bare
// "TYPE|key:value" line framing can't carry a newline literally. It travels
// base64-encoded in the "sdp" field instead; the signaling server never
// inspects that field's content, only relays it, so this is transparent
// to it.
func (c *signalingClient) call(to, offerSDP string) (string, error) {
	if err := c.send(signaling.NewMessage("CALL_OFFER", "to", to, "sdp", encodeSDP(offerSDP))); err != nil {
		return "", err
	}
	for {
		msg, err := c.recv()
		if err != nil {
			return "", err
		}
		switch msg.Type {
		case "CALL_ACCEPTED":
			return decodeSDP(msg.Get("sdp"))
		case "CALL_REJECTED":
			return "", fmt.Errorf("call rejected by %s", msg.Get("from"))
		case "CALL_ERROR":
			return "", fmt.Errorf("%s", msg.Get("error"))
		}
	}
}

// waitIncoming blocks until an INCOMING_CALL arrives, returning the caller's
// username and offer SDP.
func (c *signalingClient) waitIncoming() (string, string, error) {
	for {
		msg, err := c.recv()
		if err != nil {
			return "", "", err
		}
		if msg.Type == "INCOMING_CALL" {
			sdp, err := decodeSDP(msg.Get("sdp"))
			if err != nil {
				return "", "", err
			}
			return msg.Get("from"), sdp, nil
		}
	}
}

func (c *signalingClient) answer(to, answerSDP string) error {
	return c.send(signaling.NewMessage("CALL_ANSWER", "to", to, "accept", "true", "sdp", encodeSDP(answerSDP)))
}

func encodeSDP(sdp string) string {
	return base64.StdEncoding.EncodeToString([]byte(sdp))
}

func decodeSDP(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sdp field: %w", err)
	}
	return string(b), nil
}
