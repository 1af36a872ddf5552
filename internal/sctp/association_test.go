package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamIDConstants(t *testing.T) {
	assert.Equal(t, uint16(1), uint16(ControlStreamID))
	assert.Equal(t, uint16(2), uint16(DataStreamID))
	assert.True(t, ChunkSize < MaxMessageSize, "a chunk must fit within one SCTP message")
}

func TestIsBufferFullDetection(t *testing.T) {
	assert.True(t, isBufferFull(assertError("sctp: short write: buffer full")))
	assert.False(t, isBufferFull(assertError("sctp: association closed")))
	assert.False(t, isBufferFull(nil))
}

type assertError string

func (e assertError) Error() string { return string(e) }
