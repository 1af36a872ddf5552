package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Marker:      true,
		PayloadType: 96,
		Seq:         4242,
		Timestamp:   900000,
		SSRC:        VideoSSRC,
		CSRC:        []uint32{11, 22},
	}
	payload := []byte("some rtp payload")

	buf := Packet(h, payload)
	got, gotPayload, err := ParsePacket(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, payload, gotPayload)
}

func TestHeaderRejectsBadVersion(t *testing.T) {
	buf := Packet(Header{SSRC: VideoSSRC}, []byte("x"))
	buf[0] = (1 << 6) | (buf[0] & 0x3f) // corrupt version to 1
	_, _, err := ParsePacket(buf)
	assert.Error(t, err)
}

func nalOfSize(n int, firstByte byte) []byte {
	nalu := make([]byte, n)
	nalu[0] = firstByte
	for i := 1; i < n; i++ {
		nalu[i] = byte(i)
	}
	return nalu
}

func TestPacketizeNALSingleBelowThreshold(t *testing.T) {
	nalu := nalOfSize(500, 0x65)
	frags := PacketizeNAL(nalu)
	require.Len(t, frags, 1)
	assert.Equal(t, nalu, frags[0])
}

func TestPacketizeNALExactly900NeverFragments(t *testing.T) {
	nalu := nalOfSize(900, 0x65)
	frags := PacketizeNAL(nalu)
	assert.Len(t, frags, 1)
}

func TestPacketizeNAL901ProducesExactlyTwoFragments(t *testing.T) {
	nalu := nalOfSize(901, 0x65)
	frags := PacketizeNAL(nalu)
	require.Len(t, frags, 2)

	// First fragment: FU indicator + FU header (start bit set) + 899 payload bytes.
	assert.Equal(t, byte(naluTypeFUA), frags[0][0]&0x1f)
	assert.NotZero(t, frags[0][1]&0x80, "start bit should be set")
	assert.Zero(t, frags[0][1]&0x40, "end bit should be clear")

	assert.NotZero(t, frags[1][1]&0x40, "end bit should be set")
	assert.Zero(t, frags[1][1]&0x80, "start bit should be clear")
}

func TestPacketizeNAL2500ProducesThreeFragmentsAtSpecBoundaries(t *testing.T) {
	nalu := nalOfSize(2500, 0x65)
	frags := PacketizeNAL(nalu)
	require.Len(t, frags, 3)

	// Raw windows: [0,900), [900,1800), [1800,2500).
	// Fragment payload lengths (excluding the 2-byte FU header) are:
	// 899 (900 minus the dropped original header byte), 900, 700.
	assert.Len(t, frags[0], 2+899)
	assert.Len(t, frags[1], 2+900)
	assert.Len(t, frags[2], 2+700)
}

func TestPacketizeAndReassembleRoundTrip(t *testing.T) {
	nalu := nalOfSize(2500, 0x65)
	frags := PacketizeNAL(nalu)

	reassembled, err := Reassemble(frags)
	require.NoError(t, err)
	assert.Equal(t, prefixStartCode(nalu), reassembled)
}

func TestReassembleSingleNonFUAPacket(t *testing.T) {
	nalu := nalOfSize(200, 0x67)
	reassembled, err := Reassemble([][]byte{nalu})
	require.NoError(t, err)
	assert.Equal(t, prefixStartCode(nalu), reassembled)
}

func TestSplitNALUs(t *testing.T) {
	startCode := []byte{0, 0, 0, 1}
	var stream []byte
	stream = append(stream, startCode...)
	stream = append(stream, []byte{0x67, 1, 2, 3}...)
	stream = append(stream, startCode...)
	stream = append(stream, []byte{0x68, 4, 5}...)

	nalus := SplitNALUs(stream)
	require.Len(t, nalus, 2)
	assert.Equal(t, []byte{0x67, 1, 2, 3}, nalus[0])
	assert.Equal(t, []byte{0x68, 4, 5}, nalus[1])
}

func TestRtcpSenderReportRoundTrip(t *testing.T) {
	sr := SenderReport{
		SenderSSRC:   VideoSSRC,
		NtpMsw:       123,
		NtpLsw:       456,
		RtpTimestamp: 90000,
		PacketCount:  10,
		OctetCount:   15000,
		Reports: []ReportBlock{{
			SSRC:             AudioSSRC,
			FractionLost:     12,
			CumulativeLost:   -3,
			HighestExtSeq:    65540,
			Jitter:           7,
			LastSR:           99,
			DelaySinceLastSR: 55,
		}},
	}
	compound := CompoundPacket{SenderReport: &sr}

	parsed, err := ParseCompoundPacket(compound.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.SenderReport)
	assert.Equal(t, sr, *parsed.SenderReport)
}

func TestRtcpReceiverReportRoundTrip(t *testing.T) {
	rr := ReceiverReport{
		SenderSSRC: VideoSSRC,
		Reports: []ReportBlock{{
			SSRC:           AudioSSRC,
			FractionLost:   255,
			CumulativeLost: 100,
			HighestExtSeq:  42,
			Jitter:         3,
		}},
	}
	compound := CompoundPacket{ReceiverReport: &rr}

	parsed, err := ParseCompoundPacket(compound.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.ReceiverReport)
	assert.Equal(t, rr, *parsed.ReceiverReport)
}

func TestRtcpGoodbyeRoundTrip(t *testing.T) {
	bye := Goodbye{Sources: []uint32{VideoSSRC, AudioSSRC}, Reason: "done"}
	compound := CompoundPacket{Goodbye: &bye}

	parsed, err := ParseCompoundPacket(compound.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.Goodbye)
	assert.Equal(t, bye, *parsed.Goodbye)
}

func TestRtcpGoodbyeRoundTripNoReason(t *testing.T) {
	bye := Goodbye{Sources: []uint32{VideoSSRC}}
	compound := CompoundPacket{Goodbye: &bye}

	parsed, err := ParseCompoundPacket(compound.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.Goodbye)
	assert.Equal(t, bye.Sources, parsed.Goodbye.Sources)
	assert.Empty(t, parsed.Goodbye.Reason)
}

func TestRtcpCompoundSenderReportFirst(t *testing.T) {
	sr := SenderReport{SenderSSRC: VideoSSRC}
	bye := Goodbye{Sources: []uint32{VideoSSRC}}
	compound := CompoundPacket{SenderReport: &sr, Goodbye: &bye}

	parsed, err := ParseCompoundPacket(compound.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.SenderReport)
	require.NotNil(t, parsed.Goodbye)
}

func TestJitterBufferEmitsSingleMarkedPacketFrame(t *testing.T) {
	jb := NewJitterBuffer()

	nalu := nalOfSize(50, 0x65)
	jb.Push(Header{Seq: 2, Timestamp: 1000, Marker: true}, nalu)

	frame, ok := jb.Pop()
	require.True(t, ok)
	assert.Equal(t, prefixStartCode(nalu), frame)
}

func TestJitterBufferWithholdsIncompleteFrame(t *testing.T) {
	jb := NewJitterBuffer()
	nalu := nalOfSize(2000, 0x65)
	frags := PacketizeNAL(nalu)
	require.True(t, len(frags) > 1)

	for i := 0; i < len(frags)-1; i++ {
		jb.Push(Header{Seq: uint16(i), Timestamp: 5000}, frags[i])
	}
	_, ok := jb.Pop()
	assert.False(t, ok, "frame without marker bit must not be emittable")

	last := len(frags) - 1
	jb.Push(Header{Seq: uint16(last), Timestamp: 5000, Marker: true}, frags[last])
	frame, ok := jb.Pop()
	require.True(t, ok)
	assert.Equal(t, prefixStartCode(nalu), frame)
}

func TestJitterBufferReassemblesOutOfArrivalOrderFragments(t *testing.T) {
	jb := NewJitterBuffer()
	nalu := nalOfSize(2000, 0x65)
	frags := PacketizeNAL(nalu)
	require.True(t, len(frags) > 2)

	// Push in reverse arrival order.
	for i := len(frags) - 1; i >= 0; i-- {
		jb.Push(Header{Seq: uint16(i), Timestamp: 7000, Marker: i == len(frags)-1}, frags[i])
	}

	frame, ok := jb.Pop()
	require.True(t, ok)
	assert.Equal(t, prefixStartCode(nalu), frame)
}

func TestMediaMetricsFractionLost(t *testing.T) {
	m := &MediaMetrics{SSRC: VideoSSRC}
	m.Receiver.Received = 97
	m.RecordLost(3)
	assert.InDelta(t, 7, m.FractionLost(), 1) // 256*3/100 ≈ 7.68 -> 7
}

func TestMediaMetricsFractionLostCapsAt255(t *testing.T) {
	m := &MediaMetrics{SSRC: VideoSSRC}
	m.RecordLost(1000)
	assert.Equal(t, byte(255), m.FractionLost())
}
