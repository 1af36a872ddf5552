package corertc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomrtc/corertc/internal/ice"
	"github.com/roomrtc/corertc/internal/media"
)

func TestAudioPipelineLoopbackDeliversSamples(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.pcm")
	// Two 20ms/48kHz mono frames worth of arbitrary 16-bit PCM.
	pcm := make([]byte, audioFrameBytes*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(inputPath, pcm, 0644))
	outputPath := filepath.Join(dir, "out.pcm")

	audioSrc, err := media.OpenSource("pcmloop:" + inputPath)
	require.NoError(t, err)
	pcmSrc := audioSrc.(media.AudioSource)

	audioSink, err := media.NewFileSink(outputPath)
	require.NoError(t, err)
	defer audioSink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sender, err := NewPeerConnection(ctx, ice.Controlling, Config{
		StunServer: unreachableStunServer,
		LocalAudio: pcmSrc,
	})
	require.NoError(t, err)
	defer sender.Close()

	receiver, err := NewPeerConnection(ctx, ice.Controlled, Config{
		StunServer:  unreachableStunServer,
		RemoteAudio: audioSink,
	})
	require.NoError(t, err)
	defer receiver.Close()

	offer, err := sender.CreateOffer(ctx)
	require.NoError(t, err)
	answer, err := receiver.ProcessOffer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, sender.SetRemoteDescription(answer))

	require.NoError(t, sender.StartConnectivityChecks(ctx))
	require.NoError(t, receiver.StartConnectivityChecks(ctx))
	require.Eventually(t, func() bool {
		return sender.agent.IsConnected() && receiver.agent.IsConnected()
	}, 10*time.Second, 10*time.Millisecond)

	dtlsDone := make(chan error, 2)
	go func() { dtlsDone <- sender.StartDtlsHandshake(ctx, 10*time.Second) }()
	go func() { dtlsDone <- receiver.StartDtlsHandshake(ctx, 10*time.Second) }()
	require.NoError(t, <-dtlsDone)
	require.NoError(t, <-dtlsDone)

	runCtx, runCancel := context.WithTimeout(ctx, 3*time.Second)
	defer runCancel()

	senderPipeline := NewAudioPipeline(sender)
	receiverPipeline := NewAudioPipeline(receiver)
	go senderPipeline.Run(runCtx)
	go receiverPipeline.Run(runCtx)

	<-runCtx.Done()

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0), "expected at least one decoded frame written to the sink")
}
