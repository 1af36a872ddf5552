package media

import (
	"bufio"
	"io"
	"os"
)

// fileLoopH264Source replays a raw Annex-B H.264 bitstream file, looping
// back to the start on EOF. Used in place of a camera when running the
// media pipeline against recorded or synthetic test footage.
type fileLoopH264Source struct {
	path    string
	f       *os.File
	scanner *bufio.Scanner
}

func openFileLoopH264(path string) (src Source, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &fileLoopH264Source{path: path, f: f}
	s.resetScanner()
	return s, nil
}

func (s *fileLoopH264Source) resetScanner() {
	buffer := make([]byte, naluBufferInitialSize)
	scanner := bufio.NewScanner(s.f)
	scanner.Buffer(buffer, naluBufferMaximumSize)
	scanner.Split(splitNALU)
	s.scanner = scanner
}

func (s *fileLoopH264Source) PayloadType() string {
	return "H264/90000"
}

func (s *fileLoopH264Source) ReadNALU() ([]byte, error) {
	if s.scanner.Scan() {
		return s.scanner.Bytes(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}

	// EOF: loop back to the start of the file.
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	s.resetScanner()
	if s.scanner.Scan() {
		return s.scanner.Bytes(), nil
	}
	return nil, s.scanner.Err()
}

func (s *fileLoopH264Source) Close() error {
	return s.f.Close()
}

func init() {
	RegisterSourceType("fileloop", openFileLoopH264)
}
