package corertc

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roomrtc/corertc/internal/media"
	"github.com/roomrtc/corertc/internal/rtp"
)

const (
	audioPayloadType = 97
	audioFrameSize   = 960 // 20 ms @ 48 kHz mono, per spec §4.9
	audioFrameBytes  = audioFrameSize * 2
)

// AudioPipeline mirrors MediaPipeline for the audio direction, per spec
// §4.9: capture PCM, encode with Opus (or the passthrough oracle outside
// the opus build tag), packetize at a fixed 960-sample/20 ms cadence with
// the marker bit always set, and protect over SRTP. SSRC 2000
// distinguishes audio RTP from video at the receiver.
type AudioPipeline struct {
	pc   *PeerConnection
	src  media.AudioSource
	sink media.AudioSink

	encoder media.Encoder
	decoder media.Decoder

	metrics *rtp.MediaMetrics
}

// NewAudioPipeline wires a pipeline to pc's config, using the
// passthrough codec by default (the real Opus binding is opt-in via the
// "opus" build tag).
func NewAudioPipeline(pc *PeerConnection) *AudioPipeline {
	return &AudioPipeline{
		pc:      pc,
		src:     pc.cfg.LocalAudio,
		sink:    pc.cfg.RemoteAudio,
		encoder: media.NewPassthroughCodec(),
		decoder: media.NewPassthroughCodec(),
		metrics: &rtp.MediaMetrics{SSRC: rtp.AudioSSRC},
	}
}

// Run starts the capture/send and receive/playback workers and blocks
// until ctx is canceled.
func (p *AudioPipeline) Run(ctx context.Context) error {
	if p.sink != nil {
		if err := p.sink.Configure(48000, 1, 16); err != nil {
			return newError(Media, "AudioPipeline.Run", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if p.src != nil {
		g.Go(func() error { return p.sendLoop(ctx) })
	}
	if p.sink != nil {
		g.Go(func() error { return p.receiveLoop(ctx) })
	}
	return g.Wait()
}

func (p *AudioPipeline) sendLoop(ctx context.Context) error {
	var seq uint16
	var ts uint32
	consecutiveErrors := 0
	frame := make([]byte, audioFrameBytes)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := io.ReadFull(p.src, frame); err != nil {
			log.Warn("audio capture ended: %v", err)
			return nil
		}

		encoded, err := p.encoder.Encode(frame)
		if err != nil {
			log.Warn("opus encode failed: %v", err)
			continue
		}

		h := rtp.Header{
			Marker:      true,
			PayloadType: audioPayloadType,
			Seq:         seq,
			Timestamp:   ts,
			SSRC:        rtp.AudioSSRC,
		}
		seq++
		ts += audioFrameSize

		cipherPayload := p.pc.SrtpContext().Protect(h.Seq, h.Timestamp, encoded)
		pkt := rtp.Packet(h, cipherPayload)

		if err := p.pc.Send(pkt); err != nil {
			consecutiveErrors++
			p.metrics.RecordLost(1)
			if consecutiveErrors > maxConsecutiveSendErrors {
				return newError(Transient, "AudioPipeline.sendLoop", err)
			}
			continue
		}
		consecutiveErrors = 0
		p.metrics.RecordSent(len(encoded), h.Timestamp)
	}
}

func (p *AudioPipeline) receiveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok := <-p.pc.Receiver():
			if !ok {
				return nil
			}
			if len(pkt.Data) < 2 || pkt.Data[1] >= 200 && pkt.Data[1] <= 204 {
				continue
			}

			h, cipherPayload, err := rtp.ParsePacket(pkt.Data)
			if err != nil {
				log.Debug("dropping undecodable RTP packet: %v", err)
				continue
			}
			if h.SSRC != rtp.AudioSSRC {
				continue // routed to the video pipeline instead
			}

			encoded := p.pc.SrtpContext().Unprotect(h.Seq, h.Timestamp, cipherPayload)
			pcm, err := p.decoder.Decode(encoded)
			if err != nil {
				log.Warn("opus decode failed: %v", err)
				continue
			}
			p.metrics.RecordReceived(h.Seq, time.Now(), 0, 0, false)
			if _, err := p.sink.Write(pcm); err != nil {
				log.Warn("audio sink write failed: %v", err)
			}
		}
	}
}
