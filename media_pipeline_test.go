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

// rawH264 is two tiny Annex-B NAL units, enough for fileloop's start-code
// scanner to yield two ReadNALU frames.
var rawH264 = []byte{
	0, 0, 0, 1, 0x67, 0x01, 0x02, 0x03, // SPS-shaped NAL
	0, 0, 0, 1, 0x65, 0x04, 0x05, 0x06, // IDR-shaped NAL
}

func TestMediaPipelineLoopbackDeliversFrames(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.h264")
	require.NoError(t, os.WriteFile(inputPath, rawH264, 0644))
	outputPath := filepath.Join(dir, "out.h264")

	videoSrc, err := media.OpenSource("fileloop:" + inputPath)
	require.NoError(t, err)
	h264Src := videoSrc.(media.H264Source)

	videoSink, err := media.NewFileSink(outputPath)
	require.NoError(t, err)
	defer videoSink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sender, err := NewPeerConnection(ctx, ice.Controlling, Config{
		StunServer: unreachableStunServer,
		LocalVideo: h264Src,
	})
	require.NoError(t, err)
	defer sender.Close()

	receiver, err := NewPeerConnection(ctx, ice.Controlled, Config{
		StunServer:  unreachableStunServer,
		RemoteVideo: videoSink,
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

	senderPipeline := NewMediaPipeline(sender)
	receiverPipeline := NewMediaPipeline(receiver)
	go senderPipeline.Run(runCtx)
	go receiverPipeline.Run(runCtx)

	<-runCtx.Done()

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0), "expected at least one reassembled frame written to the sink")
}
