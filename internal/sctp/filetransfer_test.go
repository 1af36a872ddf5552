package sctp

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream is an in-memory, queue-backed messageStream used to test
// filetransfer's control/data flow without a real SCTP association.
type fakeStream struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue [][]byte
	err   error
}

func newFakeStream() *fakeStream {
	s := &fakeStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *fakeStream) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), data...)
	s.queue = append(s.queue, cp)
	s.cond.Signal()
	return nil
}

func (s *fakeStream) Receive(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && s.err == nil {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return 0, s.err
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return copy(buf, msg), nil
}

// newPipe links a sender-side pairedStream to a receiver-side pairedStream,
// so Send on one arrives as Receive on the other.
func newPipe() (sender, receiver *pairedStream) {
	ab := newFakeStream()
	ba := newFakeStream()
	return &pairedStream{send: ab, recv: ba}, &pairedStream{send: ba, recv: ab}
}

type pairedStream struct {
	send *fakeStream
	recv *fakeStream
}

func (p *pairedStream) Send(data []byte) error        { return p.send.Send(data) }
func (p *pairedStream) Receive(buf []byte) (int, error) { return p.recv.Receive(buf) }

func TestFileTransferRoundTripAccepted(t *testing.T) {
	senderCtrl, receiverCtrl := newPipe()
	senderData, receiverData := newPipe()

	content := bytes.Repeat([]byte("x"), ChunkSize*3+17)

	var wg sync.WaitGroup
	wg.Add(2)

	var sendErr error
	go func() {
		defer wg.Done()
		sendErr = SendFile(senderCtrl, senderData, "report.txt", "text/plain", int64(len(content)), bytes.NewReader(content))
	}()

	var recvErr error
	var offer FileOffer
	var out bytes.Buffer
	go func() {
		defer wg.Done()
		offer, recvErr = ReceiveFile(receiverCtrl, receiverData, &out, func(FileOffer) bool { return true })
	}()

	wg.Wait()
	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	assert.Equal(t, "report.txt", offer.Filename)
	assert.Equal(t, int64(len(content)), offer.Size)
	assert.Equal(t, content, out.Bytes())
}

func TestFileTransferRejected(t *testing.T) {
	senderCtrl, receiverCtrl := newPipe()
	senderData, receiverData := newPipe()

	var wg sync.WaitGroup
	wg.Add(2)

	var sendErr error
	go func() {
		defer wg.Done()
		sendErr = SendFile(senderCtrl, senderData, "no.bin", "application/octet-stream", 4096, bytes.NewReader(make([]byte, 4096)))
	}()

	var recvErr error
	var out bytes.Buffer
	go func() {
		defer wg.Done()
		_, recvErr = ReceiveFile(receiverCtrl, receiverData, &out, func(FileOffer) bool { return false })
	}()

	wg.Wait()
	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	assert.Empty(t, out.Bytes())
}

func TestSendChunkWithBackoffRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	s := &flakyStream{failTimes: 2, onSend: func() { attempts++ }}
	err := sendChunkWithBackoff(s, []byte("chunk"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSendChunkWithBackoffPropagatesNonBufferErrors(t *testing.T) {
	s := &flakyStream{fatal: errors.New("association closed")}
	err := sendChunkWithBackoff(s, []byte("chunk"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "association closed")
}

// flakyStream fails its first failTimes sends with a buffer-full error
// (the "short write" substring isBufferFull checks for), or always fails
// with a fatal error if set.
type flakyStream struct {
	failTimes int
	fatal     error
	onSend    func()
}

func (s *flakyStream) Send(data []byte) error {
	if s.onSend != nil {
		s.onSend()
	}
	if s.fatal != nil {
		return s.fatal
	}
	if s.failTimes > 0 {
		s.failTimes--
		return errors.New("sctp: short write, send buffer full")
	}
	return nil
}

func (s *flakyStream) Receive(buf []byte) (int, error) { return 0, nil }
