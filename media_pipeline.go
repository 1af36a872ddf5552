package corertc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roomrtc/corertc/internal/media"
	"github.com/roomrtc/corertc/internal/rtp"
)

const (
	videoPayloadType         = 96
	videoClockRate           = 90000
	videoTsIncrement         = 3000 // 90 kHz / 30 fps target
	maxConsecutiveSendErrors = 300

	// Remote inactivity watchdog thresholds, per spec §5/§8: 2s-30s of no
	// inbound RTP is "unstable", >=30s tears the pipeline down with one BYE.
	inactivityUnstableAfter = 2 * time.Second
	inactivityTerminalAfter = 30 * time.Second
	inactivityCheckInterval = time.Second
)

// pipelineState tracks the video pipeline's own remote-inactivity state,
// independent of the PeerConnection's ICE/DTLS State.
type pipelineState int

const (
	pipelineActive pipelineState = iota
	pipelineUnstable
	pipelineTerminal
)

// rtcpSender adapts a PeerConnection's raw socket Send into the
// rtp.RtcpSender interface. RTCP packets ride the same socket as RTP,
// unprotected: the SRTP keystream in this system is defined over an
// (seq, ts) pair that RTCP reports don't carry, so compound RTCP packets
// are sent in the clear, matching the "authentication and replay
// protection are not part of this core specification" scope note for
// SRTP itself.
type rtcpSender struct {
	pc *PeerConnection
}

func (s rtcpSender) SendRTCP(packet []byte) error {
	return s.pc.Send(packet)
}

// MediaPipeline drives the video DAG of spec §4.8: capture H.264 NAL
// units, packetize and protect them over RTP/SRTP, and reassemble inbound
// RTP into decoded frames for the configured sink.
type MediaPipeline struct {
	pc  *PeerConnection
	src media.H264Source
	sink media.Sink

	metrics  *rtp.MediaMetrics
	reporter *rtp.RtcpReporter

	encoded chan []byte

	watchdogMu sync.Mutex
	lastRTPAt  time.Time
	state      pipelineState
}

// NewMediaPipeline wires a pipeline to pc's config. Either LocalVideo or
// RemoteVideo (or both) may be nil, in which case that direction is
// inactive.
func NewMediaPipeline(pc *PeerConnection) *MediaPipeline {
	return &MediaPipeline{
		pc:      pc,
		src:     videoSourceOf(pc.cfg),
		sink:    pc.cfg.RemoteVideo,
		metrics: &rtp.MediaMetrics{SSRC: rtp.VideoSSRC},
		encoded: make(chan []byte, 1),
	}
}

func videoSourceOf(cfg Config) media.H264Source {
	return cfg.LocalVideo
}

// Run starts the send/receive/report workers and blocks until ctx is
// canceled or a terminal error occurs.
func (p *MediaPipeline) Run(ctx context.Context) error {
	p.reporter = rtp.NewRtcpReporter(rtp.VideoSSRC, p.metrics, rtcpSender{p.pc}, p.src != nil)

	g, ctx := errgroup.WithContext(ctx)
	if p.src != nil {
		g.Go(func() error { return p.captureLoop(ctx) })
		g.Go(func() error { return p.sendLoop(ctx) })
	}
	if p.sink != nil {
		p.touch(time.Now())
		g.Go(func() error { return p.receiveLoop(ctx) })
		g.Go(func() error { return p.watchdogLoop(ctx) })
	}
	g.Go(func() error { return p.reporter.Run(ctx) })

	return g.Wait()
}

// watchdogLoop implements the remote inactivity watchdog: 2s-30s of
// silence on the inbound RTP stream logs an unstable indication, and
// >=30s sends one RTCP BYE and tears the pipeline down.
func (p *MediaPipeline) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(inactivityCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			silence := time.Since(p.lastReceived())
			switch {
			case silence >= inactivityTerminalAfter:
				if p.markTerminal() {
					log.Warn("video: no RTP for %s, sending BYE and closing", silence.Round(time.Second))
					p.sendGoodbye()
					return newError(Transient, "MediaPipeline.watchdogLoop", fmt.Errorf("remote inactivity: no RTP for %s", silence.Round(time.Second)))
				}
			case silence >= inactivityUnstableAfter:
				if p.markUnstable() {
					log.Warn("video: no RTP for %s, connection unstable", silence.Round(time.Second))
				}
			}
		}
	}
}

func (p *MediaPipeline) touch(t time.Time) {
	p.watchdogMu.Lock()
	defer p.watchdogMu.Unlock()
	p.lastRTPAt = t
	if p.state == pipelineUnstable {
		p.state = pipelineActive
		log.Info("video: RTP resumed, connection stable")
	}
}

func (p *MediaPipeline) lastReceived() time.Time {
	p.watchdogMu.Lock()
	defer p.watchdogMu.Unlock()
	return p.lastRTPAt
}

func (p *MediaPipeline) markUnstable() bool {
	p.watchdogMu.Lock()
	defer p.watchdogMu.Unlock()
	if p.state != pipelineActive {
		return false
	}
	p.state = pipelineUnstable
	return true
}

func (p *MediaPipeline) markTerminal() bool {
	p.watchdogMu.Lock()
	defer p.watchdogMu.Unlock()
	if p.state == pipelineTerminal {
		return false
	}
	p.state = pipelineTerminal
	return true
}

func (p *MediaPipeline) sendGoodbye() {
	bye := rtp.CompoundPacket{Goodbye: &rtp.Goodbye{
		Sources: []uint32{rtp.VideoSSRC},
		Reason:  "remote inactivity",
	}}
	if err := (rtcpSender{p.pc}).SendRTCP(bye.Marshal()); err != nil {
		log.Warn("video: failed to send BYE: %v", err)
	}
}

func (p *MediaPipeline) captureLoop(ctx context.Context) error {
	defer close(p.encoded)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		nalu, err := p.src.ReadNALU()
		if err != nil {
			log.Warn("video capture ended: %v", err)
			return nil
		}
		select {
		case p.encoded <- nalu:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *MediaPipeline) sendLoop(ctx context.Context) error {
	var seq uint16
	var ts uint32
	consecutiveErrors := 0

	for {
		var nalu []byte
		select {
		case n, ok := <-p.encoded:
			if !ok {
				return nil
			}
			nalu = n
		case <-ctx.Done():
			return nil
		}

		payloads := rtp.PacketizeNAL(nalu)
		ts += videoTsIncrement

		for i, payload := range payloads {
			marker := i == len(payloads)-1
			h := rtp.Header{
				Marker:      marker,
				PayloadType: videoPayloadType,
				Seq:         seq,
				Timestamp:   ts,
				SSRC:        rtp.VideoSSRC,
			}
			seq++

			cipherPayload := p.pc.SrtpContext().Protect(h.Seq, h.Timestamp, payload)
			pkt := rtp.Packet(h, cipherPayload)

			if err := p.pc.Send(pkt); err != nil {
				consecutiveErrors++
				p.metrics.RecordLost(1)
				if consecutiveErrors > maxConsecutiveSendErrors {
					return newError(Transient, "MediaPipeline.sendLoop", err)
				}
				continue
			}
			consecutiveErrors = 0
			p.metrics.RecordSent(len(payload), ts)
		}
	}
}

func (p *MediaPipeline) receiveLoop(ctx context.Context) error {
	jb := rtp.NewJitterBuffer()
	lastTransit := int64(0)
	haveLastTransit := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok := <-p.pc.Receiver():
			if !ok {
				return nil
			}
			if len(pkt.Data) < 2 || pkt.Data[1] >= 200 && pkt.Data[1] <= 204 {
				continue // RTCP, not ours to decode
			}

			h, payload, err := p.unprotect(pkt.Data)
			if err != nil {
				log.Debug("dropping undecodable RTP packet: %v", err)
				continue
			}
			if h.SSRC != rtp.VideoSSRC {
				continue // routed to the audio pipeline instead
			}

			now := time.Now()
			p.touch(now)
			arrivalRTP := uint32(now.UnixNano() / 1e9 * videoClockRate)
			transit := int64(arrivalRTP) - int64(h.Timestamp)
			p.metrics.RecordReceived(h.Seq, now, transit, lastTransit, haveLastTransit)
			lastTransit, haveLastTransit = transit, true

			jb.Push(h, payload)
			p.drainFrames(jb)
		}
	}
}

// unprotect parses a received datagram's clear RTP header and decrypts its
// payload using the (seq, ts) it carries.
func (p *MediaPipeline) unprotect(datagram []byte) (rtp.Header, []byte, error) {
	h, cipherPayload, err := rtp.ParsePacket(datagram)
	if err != nil {
		return rtp.Header{}, nil, err
	}
	payload := p.pc.SrtpContext().Unprotect(h.Seq, h.Timestamp, cipherPayload)
	return h, payload, nil
}

func (p *MediaPipeline) drainFrames(jb *rtp.JitterBuffer) {
	for {
		frame, ok := jb.Pop()
		if !ok {
			return
		}
		if _, err := p.sink.Write(frame); err != nil {
			log.Warn("video sink write failed: %v", err)
		}
	}
}
