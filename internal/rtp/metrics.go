package rtp

import "time"

// SenderMetrics tracks what a local sender has transmitted, per spec §3.
type SenderMetrics struct {
	PktCount      uint32
	OctetCount    uint32
	LastRtpTs     uint32
	BitrateKbps   float64
	RefreshWindow time.Duration
}

// RemoteSenderReport captures the most recently received RTCP SR from the
// remote side, needed to compute DLSR on the next RR.
type RemoteSenderReport struct {
	NtpMsw, NtpLsw uint32
	ReceivedAt     time.Time
}

// ReceiverMetrics tracks what has been received from the remote side, per
// spec §3 and the RFC 3550 §6.4.1 jitter estimator.
type ReceiverMetrics struct {
	Received      uint32
	Lost          uint32
	HighestExtSeq uint32
	SeqCycles     uint32
	Jitter        float64
	LastArrival   time.Time
	LastRemoteSR  *RemoteSenderReport
}

// MediaMetrics is the full set of per-SSRC statistics, per spec §3.
type MediaMetrics struct {
	SSRC     uint32
	Sender   SenderMetrics
	Receiver ReceiverMetrics

	haveHighest bool
	highestSeq  uint16
}

// RecordSent updates sender-side counters after transmitting an RTP packet.
func (m *MediaMetrics) RecordSent(payloadLen int, ts uint32) {
	m.Sender.PktCount++
	m.Sender.OctetCount += uint32(payloadLen)
	m.Sender.LastRtpTs = ts
}

// RecordReceived updates receiver-side counters, including the RFC 3550
// §6.4.1 incremental jitter estimate, on arrival of an RTP packet with
// transit time `transit` (arrival clock minus RTP timestamp, both in the
// same units).
func (m *MediaMetrics) RecordReceived(seq uint16, arrival time.Time, transit int64, lastTransit int64, haveLastTransit bool) {
	m.Receiver.Received++
	m.Receiver.LastArrival = arrival

	if haveLastTransit {
		d := transit - lastTransit
		if d < 0 {
			d = -d
		}
		m.Receiver.Jitter += (float64(d) - m.Receiver.Jitter) / 16
	}

	if !m.haveHighest {
		m.highestSeq = seq
		m.haveHighest = true
	} else {
		if seq < m.highestSeq && m.highestSeq-seq > 0x8000 {
			m.Receiver.SeqCycles++
		}
		if seqOlder(m.highestSeq, seq) {
			m.highestSeq = seq
		}
	}
	m.Receiver.HighestExtSeq = m.Receiver.SeqCycles<<16 | uint32(m.highestSeq)
}

// RecordLost increments the cumulative loss count by n.
func (m *MediaMetrics) RecordLost(n uint32) {
	m.Receiver.Lost += n
}

// FractionLost computes the RTCP report-block fraction-lost byte, per
// RFC 3550 §6.4.1: min(255, 256·lost/(received+lost)).
func (m *MediaMetrics) FractionLost() byte {
	total := m.Receiver.Received + m.Receiver.Lost
	if total == 0 {
		return 0
	}
	frac := 256 * uint64(m.Receiver.Lost) / uint64(total)
	if frac > 255 {
		frac = 255
	}
	return byte(frac)
}
