package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LineLogWriter renders zerolog JSON events into the roll-forward log
// line format `[LEVEL][unix-ts] msg`, appending to the configured
// log_file. It implements io.Writer so it can be passed to
// logging.Logger.WithWriter.
type LineLogWriter struct {
	f *os.File
}

// OpenLineLogWriter opens (creating if needed) the log file at path for
// appending.
func OpenLineLogWriter(path string) (*LineLogWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &LineLogWriter{f: f}, nil
}

// Write accepts one zerolog JSON-encoded event per call and appends the
// corresponding "[LEVEL][unix-ts] msg" line.
func (w *LineLogWriter) Write(p []byte) (int, error) {
	var ev struct {
		Level string `json:"level"`
		Time  string `json:"time"`
		Msg   string `json:"message"`
	}
	if err := json.Unmarshal(p, &ev); err != nil {
		// Not a JSON event we understand; pass it through unmodified
		// rather than drop it.
		return w.f.Write(p)
	}

	ts := time.Now().Unix()
	if t, err := time.Parse(time.RFC3339, ev.Time); err == nil {
		ts = t.Unix()
	}

	line := fmt.Sprintf("[%s][%d] %s\n", strings.ToUpper(ev.Level), ts, ev.Msg)
	if _, err := w.f.WriteString(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying log file.
func (w *LineLogWriter) Close() error {
	return w.f.Close()
}

var _ io.WriteCloser = (*LineLogWriter)(nil)
