package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineLogWriterRendersLevelTimestampMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomrtc.log")
	w, err := OpenLineLogWriter(path)
	require.NoError(t, err)

	event := []byte(`{"level":"info","time":"2026-07-31T00:00:00Z","message":"server started"}`)
	n, err := w.Write(event)
	require.NoError(t, err)
	assert.Equal(t, len(event), n)
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[INFO][1785456000] server started\n", string(got))
}

func TestLineLogWriterPassesThroughUnrecognizedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomrtc.log")
	w, err := OpenLineLogWriter(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("not json\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json\n", string(got))
}
