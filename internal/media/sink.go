package media

import (
	"io"
	"os"
)

// Sink is the generic interface for a media (audio or video) output: a
// speaker, a display, or a file.
type Sink interface {
	io.Writer
	io.Closer
}

// AudioSink is a Sink that additionally needs to be told the format of the
// samples it will receive, since decoded audio carries no self-describing
// header.
type AudioSink interface {
	Sink

	// Configure the sink's sample rate, channel count, and sample format
	// before the first Write.
	Configure(rate, channels, format int) error
}

// FileSink writes decoded media straight to a file, useful for testing a
// pipeline without real audio/video hardware.
type FileSink struct {
	file *os.File
}

// NewFileSink creates (or truncates) filename and returns a Sink that
// writes to it.
func NewFileSink(filename string) (*FileSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *FileSink) Close() error {
	return s.file.Close()
}

// Configure is a no-op; a FileSink doesn't interpret the sample format.
func (s *FileSink) Configure(rate, channels, format int) error {
	return nil
}
