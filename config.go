package corertc

import "github.com/roomrtc/corertc/internal/media"

// Config supplies the local media endpoints a PeerConnection drives once
// connected. A nil field simply means that pipeline direction is inactive.
type Config struct {
	LocalVideo  media.H264Source
	LocalAudio  media.AudioSource
	RemoteVideo media.Sink
	RemoteAudio media.AudioSink

	// StunServer is the public STUN server used for reflexive candidate
	// discovery during gathering.
	StunServer string
}

const defaultStunServer = "stun.l.google.com:19302"

func (c Config) stunServer() string {
	if c.StunServer != "" {
		return c.StunServer
	}
	return defaultStunServer
}
