package rtp

import (
	"context"
	"time"
)

// reportInterval is the cadence at which RtcpReporter emits compound RTCP
// packets, per spec §4.10.
const reportInterval = 1000 * time.Millisecond

// RtcpSender is the minimal transport a RtcpReporter needs: somewhere to
// write a marshaled compound RTCP packet.
type RtcpSender interface {
	SendRTCP(packet []byte) error
}

// RtcpReporter periodically builds and sends a compound SR/RR packet from a
// live MediaMetrics snapshot, per spec §4.10.
type RtcpReporter struct {
	ssrc    uint32
	metrics *MediaMetrics
	sender  RtcpSender
	isSender bool
}

// NewRtcpReporter builds a reporter for one SSRC's metrics. isSender
// selects whether the periodic packet leads with a SenderReport (local
// side is transmitting media) or a ReceiverReport (local side is
// receive-only).
func NewRtcpReporter(ssrc uint32, metrics *MediaMetrics, sender RtcpSender, isSender bool) *RtcpReporter {
	return &RtcpReporter{ssrc: ssrc, metrics: metrics, sender: sender, isSender: isSender}
}

// Run blocks, emitting a compound RTCP packet every reportInterval, until
// ctx is canceled.
func (r *RtcpReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.sender.SendRTCP(r.buildReport().Marshal()); err != nil {
				return err
			}
		}
	}
}

func (r *RtcpReporter) buildReport() CompoundPacket {
	block := ReportBlock{
		SSRC:           r.ssrc,
		FractionLost:   r.metrics.FractionLost(),
		CumulativeLost: int32(r.metrics.Receiver.Lost),
		HighestExtSeq:  r.metrics.Receiver.HighestExtSeq,
		Jitter:         uint32(r.metrics.Receiver.Jitter),
	}
	if last := r.metrics.Receiver.LastRemoteSR; last != nil {
		block.LastSR = ntpMiddle32(last.NtpMsw, last.NtpLsw)
		block.DelaySinceLastSR = dlsrUnits(time.Since(last.ReceivedAt))
	}

	var c CompoundPacket
	if r.isSender {
		msw, lsw := ntpNow()
		c.SenderReport = &SenderReport{
			SenderSSRC:   r.ssrc,
			NtpMsw:       msw,
			NtpLsw:       lsw,
			RtpTimestamp: r.metrics.Sender.LastRtpTs,
			PacketCount:  r.metrics.Sender.PktCount,
			OctetCount:   r.metrics.Sender.OctetCount,
			Reports:      []ReportBlock{block},
		}
	} else {
		c.ReceiverReport = &ReceiverReport{
			SenderSSRC: r.ssrc,
			Reports:    []ReportBlock{block},
		}
	}
	return c
}

const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01

// ntpNow renders the current wall-clock time as NTP's 32.32 fixed-point
// seconds-since-1900 format, split into its two 32-bit halves.
func ntpNow() (msw, lsw uint32) {
	now := time.Now()
	secs := uint64(now.Unix()) + ntpEpochOffset
	frac := uint64(now.Nanosecond()) << 32 / 1e9
	return uint32(secs), uint32(frac)
}

// ntpMiddle32 extracts the middle 32 bits of a 64-bit NTP timestamp, as
// used in the RTCP "last SR" report-block field.
func ntpMiddle32(msw, lsw uint32) uint32 {
	return msw<<16 | lsw>>16
}

// dlsrUnits converts an elapsed duration into RTCP's 1/65536-second DLSR
// units.
func dlsrUnits(d time.Duration) uint32 {
	return uint32(d.Seconds() * 65536)
}
