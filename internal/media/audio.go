package media

import "io"

// AudioSource is a capture device yielding raw PCM samples. Read fills b
// with up to len(b) bytes of interleaved PCM at SampleRate()/BytesPerSample().
type AudioSource interface {
	Source
	io.Reader

	Codec() string

	SampleRate() int
	BytesPerSample() int
}
