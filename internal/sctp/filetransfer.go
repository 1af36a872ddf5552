package sctp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ChunkSize is the size of one file-transfer data chunk, per spec §4.12.
const ChunkSize = 4 * 1024

// backoffCap bounds how long sendChunkWithBackoff retries a full send buffer before
// giving up, per spec §4.11/§4.12.
const (
	backoffStep = 50 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// controlMessageType tags the JSON control messages exchanged on the
// control stream, per spec §3's FileTransferMessage variant.
type controlMessageType string

const (
	msgOffer  controlMessageType = "offer"
	msgAnswer controlMessageType = "answer"
	msgEof    controlMessageType = "eof"
)

// controlMessage is the wire form of FileTransferMessage.
type controlMessage struct {
	Type     controlMessageType `json:"type"`
	Filename string             `json:"filename,omitempty"`
	Size     int64              `json:"size,omitempty"`
	Mime     string             `json:"mime,omitempty"`
	Accepted bool               `json:"accepted,omitempty"`
}

// FileOffer describes an incoming transfer offer handed to the receiver's
// accept callback.
type FileOffer struct {
	Filename string
	Size     int64
	Mime     string
}

// messageStream is the minimal send/receive surface filetransfer needs;
// *Stream satisfies it, and tests substitute an in-memory fake.
type messageStream interface {
	Send(data []byte) error
	Receive(buf []byte) (int, error)
}

// isBufferFull reports whether err indicates a full SCTP send buffer, as
// opposed to a fatal association error. pion/sctp surfaces this as an
// io.ErrShortWrite-wrapping condition from WriteSCTP when the partial
// reliability / flow-control window is exhausted.
func isBufferFull(err error) bool {
	return err != nil && strings.Contains(err.Error(), "short write")
}

func sendControl(ctrl messageStream, msg controlMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("filetransfer: encoding control message: %w", err)
	}
	return ctrl.Send(body)
}

func receiveControl(ctrl messageStream) (controlMessage, error) {
	buf := make([]byte, 4096)
	n, err := ctrl.Receive(buf)
	if err != nil {
		return controlMessage{}, err
	}
	var msg controlMessage
	if err := json.Unmarshal(buf[:n], &msg); err != nil {
		return controlMessage{}, fmt.Errorf("filetransfer: decoding control message: %w", err)
	}
	return msg, nil
}

// SendFile offers r (size bytes, the given filename/mime) to the remote
// peer over ctrl/data, and streams its contents if accepted. Per spec
// §4.11/§4.12: offer, wait for answer, then send 4 KiB chunks with
// exponential-interval back-off (50ms steps, up to 10s total) on a full
// send buffer, finishing with an Eof control message.
func SendFile(ctrl, data messageStream, filename, mime string, size int64, r io.Reader) error {
	if err := sendControl(ctrl, controlMessage{Type: msgOffer, Filename: filename, Size: size, Mime: mime}); err != nil {
		return fmt.Errorf("filetransfer: sending offer: %w", err)
	}

	answer, err := receiveControl(ctrl)
	if err != nil {
		return fmt.Errorf("filetransfer: waiting for answer: %w", err)
	}
	if answer.Type != msgAnswer {
		return fmt.Errorf("filetransfer: expected answer, got %q", answer.Type)
	}
	if !answer.Accepted {
		return nil
	}

	chunk := make([]byte, ChunkSize)
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			if err := sendChunkWithBackoff(data, chunk[:n]); err != nil {
				return fmt.Errorf("filetransfer: sending chunk: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("filetransfer: reading source: %w", readErr)
		}
	}

	return sendControl(ctrl, controlMessage{Type: msgEof})
}

// sendChunkWithBackoff retries Send on a full buffer, doubling the wait
// each time starting from backoffStep, up to a cumulative backoffCap.
func sendChunkWithBackoff(data messageStream, chunk []byte) error {
	wait := backoffStep
	var elapsed time.Duration
	for {
		err := data.Send(chunk)
		if err == nil {
			return nil
		}
		if !isBufferFull(err) {
			return err
		}
		if elapsed >= backoffCap {
			return fmt.Errorf("send buffer still full after %s: %w", backoffCap, err)
		}
		if elapsed+wait > backoffCap {
			wait = backoffCap - elapsed
		}
		time.Sleep(wait)
		elapsed += wait
		if wait < backoffCap {
			wait *= 2
		}
	}
}

// ReceiveFile waits for an offer on ctrl, invokes accept to decide whether
// to take it, and if accepted writes the incoming data-stream chunks to w
// until the sender's Eof control message arrives.
func ReceiveFile(ctrl, data messageStream, w io.Writer, accept func(FileOffer) bool) (FileOffer, error) {
	offer, err := receiveControl(ctrl)
	if err != nil {
		return FileOffer{}, fmt.Errorf("filetransfer: waiting for offer: %w", err)
	}
	if offer.Type != msgOffer {
		return FileOffer{}, fmt.Errorf("filetransfer: expected offer, got %q", offer.Type)
	}
	fo := FileOffer{Filename: offer.Filename, Size: offer.Size, Mime: offer.Mime}

	accepted := accept(fo)
	if err := sendControl(ctrl, controlMessage{Type: msgAnswer, Accepted: accepted}); err != nil {
		return fo, fmt.Errorf("filetransfer: sending answer: %w", err)
	}
	if !accepted {
		return fo, nil
	}

	eof := make(chan error, 1)
	go func() {
		msg, err := receiveControl(ctrl)
		if err != nil {
			eof <- err
			return
		}
		if msg.Type != msgEof {
			eof <- fmt.Errorf("filetransfer: expected eof, got %q", msg.Type)
			return
		}
		eof <- nil
	}()

	chunk := make([]byte, ChunkSize)
	for {
		select {
		case err := <-eof:
			return fo, err
		default:
		}

		n, err := data.Receive(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fo, <-eof
			}
			return fo, fmt.Errorf("filetransfer: receiving chunk: %w", err)
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return fo, fmt.Errorf("filetransfer: writing chunk: %w", err)
		}
	}
}

// SendFilePath is a convenience wrapper around SendFile for a file on disk.
func SendFilePath(ctrl, data messageStream, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("filetransfer: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("filetransfer: %w", err)
	}
	return SendFile(ctrl, data, info.Name(), "application/octet-stream", info.Size(), f)
}
