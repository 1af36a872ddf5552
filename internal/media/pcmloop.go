package media

import (
	"io"
	"os"
)

// pcmLoopAudioSource replays a raw 16-bit PCM file, looping back to the
// start on EOF, mirroring fileLoopH264Source's behavior for the audio
// direction.
type pcmLoopAudioSource struct {
	path       string
	f          *os.File
	sampleRate int
}

func openPCMLoopAudio(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &pcmLoopAudioSource{path: path, f: f, sampleRate: 48000}, nil
}

func (s *pcmLoopAudioSource) PayloadType() string { return "opus/48000" }
func (s *pcmLoopAudioSource) Codec() string        { return "opus" }
func (s *pcmLoopAudioSource) SampleRate() int      { return s.sampleRate }
func (s *pcmLoopAudioSource) BytesPerSample() int  { return 2 }

func (s *pcmLoopAudioSource) Read(b []byte) (int, error) {
	n, err := s.f.Read(b)
	if err == io.EOF {
		if _, seekErr := s.f.Seek(0, io.SeekStart); seekErr != nil {
			return n, seekErr
		}
		if n > 0 {
			return n, nil
		}
		return s.f.Read(b)
	}
	return n, err
}

func (s *pcmLoopAudioSource) Close() error {
	return s.f.Close()
}

// muteAudioSource substitutes silence (all-zero samples) for a capture
// device, per the "mute flag" behavior: Read always fills b with zeros.
type muteAudioSource struct{}

func NewMuteAudioSource() AudioSource { return muteAudioSource{} }

func (muteAudioSource) PayloadType() string { return "opus/48000" }
func (muteAudioSource) Codec() string        { return "opus" }
func (muteAudioSource) SampleRate() int      { return 48000 }
func (muteAudioSource) BytesPerSample() int  { return 2 }

func (muteAudioSource) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = 0
	}
	return len(b), nil
}

func (muteAudioSource) Close() error { return nil }

func init() {
	RegisterSourceType("pcmloop", openPCMLoopAudio)
}
