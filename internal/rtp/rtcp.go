package rtp

import (
	"fmt"

	"github.com/roomrtc/corertc/internal/packet"
)

// RTCP packet types, per RFC 3550 §12.1. Only SR, RR, and BYE are
// implemented; SDES and the RTP/AVPF feedback types are out of scope.
const (
	PtSenderReport   = 200
	PtReceiverReport = 201
	PtGoodbye        = 203
)

const reportBlockSize = 24

// ReportBlock is one reception report, per RFC 3550 §6.4.1.
type ReportBlock struct {
	SSRC             uint32
	FractionLost     byte
	CumulativeLost   int32 // 24-bit signed value, sign-extended
	HighestExtSeq    uint32
	Jitter           uint32
	LastSR           uint32
	DelaySinceLastSR uint32
}

func (b ReportBlock) writeTo(w *packet.Writer) {
	w.WriteUint32(b.SSRC)
	w.WriteByte(b.FractionLost)
	w.WriteUint24(uint32(b.CumulativeLost) & 0xffffff)
	w.WriteUint32(b.HighestExtSeq)
	w.WriteUint32(b.Jitter)
	w.WriteUint32(b.LastSR)
	w.WriteUint32(b.DelaySinceLastSR)
}

func readReportBlock(r *packet.Reader) ReportBlock {
	var b ReportBlock
	b.SSRC = r.ReadUint32()
	b.FractionLost = r.ReadByte()
	lost := r.ReadUint24()
	if lost&0x800000 != 0 {
		lost |= 0xff000000 // sign-extend the 24-bit field
	}
	b.CumulativeLost = int32(lost)
	b.HighestExtSeq = r.ReadUint32()
	b.Jitter = r.ReadUint32()
	b.LastSR = r.ReadUint32()
	b.DelaySinceLastSR = r.ReadUint32()
	return b
}

// SenderReport is an RTCP SR packet, per RFC 3550 §6.4.1.
type SenderReport struct {
	SenderSSRC   uint32
	NtpMsw       uint32
	NtpLsw       uint32
	RtpTimestamp uint32
	PacketCount  uint32
	OctetCount   uint32
	Reports      []ReportBlock
}

func (sr SenderReport) marshal() []byte {
	bodyLen := 24 + reportBlockSize*len(sr.Reports)
	w := packet.NewWriterSize(4 + bodyLen)
	writeHeader(w, byte(len(sr.Reports)), PtSenderReport, bodyLen)
	w.WriteUint32(sr.SenderSSRC)
	w.WriteUint32(sr.NtpMsw)
	w.WriteUint32(sr.NtpLsw)
	w.WriteUint32(sr.RtpTimestamp)
	w.WriteUint32(sr.PacketCount)
	w.WriteUint32(sr.OctetCount)
	for _, rep := range sr.Reports {
		rep.writeTo(w)
	}
	return w.Bytes()
}

func unmarshalSenderReport(r *packet.Reader, count int) (SenderReport, error) {
	var sr SenderReport
	if err := r.CheckRemaining(24); err != nil {
		return sr, fmt.Errorf("rtcp: short sender report: %w", err)
	}
	sr.SenderSSRC = r.ReadUint32()
	sr.NtpMsw = r.ReadUint32()
	sr.NtpLsw = r.ReadUint32()
	sr.RtpTimestamp = r.ReadUint32()
	sr.PacketCount = r.ReadUint32()
	sr.OctetCount = r.ReadUint32()
	for i := 0; i < count; i++ {
		if err := r.CheckRemaining(reportBlockSize); err != nil {
			return sr, fmt.Errorf("rtcp: short report block: %w", err)
		}
		sr.Reports = append(sr.Reports, readReportBlock(r))
	}
	return sr, nil
}

// ReceiverReport is an RTCP RR packet, per RFC 3550 §6.4.2.
type ReceiverReport struct {
	SenderSSRC uint32
	Reports    []ReportBlock
}

func (rr ReceiverReport) marshal() []byte {
	bodyLen := 4 + reportBlockSize*len(rr.Reports)
	w := packet.NewWriterSize(4 + bodyLen)
	writeHeader(w, byte(len(rr.Reports)), PtReceiverReport, bodyLen)
	w.WriteUint32(rr.SenderSSRC)
	for _, rep := range rr.Reports {
		rep.writeTo(w)
	}
	return w.Bytes()
}

func unmarshalReceiverReport(r *packet.Reader, count int) (ReceiverReport, error) {
	var rr ReceiverReport
	if err := r.CheckRemaining(4); err != nil {
		return rr, fmt.Errorf("rtcp: short receiver report: %w", err)
	}
	rr.SenderSSRC = r.ReadUint32()
	for i := 0; i < count; i++ {
		if err := r.CheckRemaining(reportBlockSize); err != nil {
			return rr, fmt.Errorf("rtcp: short report block: %w", err)
		}
		rr.Reports = append(rr.Reports, readReportBlock(r))
	}
	return rr, nil
}

// Goodbye is an RTCP BYE packet, per RFC 3550 §6.6.
type Goodbye struct {
	Sources []uint32
	Reason  string
}

func (bye Goodbye) marshal() []byte {
	rawLen := 4 * len(bye.Sources)
	if len(bye.Reason) > 0 {
		rawLen += 1 + len(bye.Reason) // length-prefix byte + text
	}
	paddedLen := (rawLen + 3) &^ 3

	w := packet.NewWriterSize(4 + paddedLen)
	writeHeader(w, byte(len(bye.Sources)), PtGoodbye, paddedLen)
	for _, ssrc := range bye.Sources {
		w.WriteUint32(ssrc)
	}
	if len(bye.Reason) > 0 {
		w.WriteByte(byte(len(bye.Reason)))
		w.WriteString(bye.Reason)
	}
	w.Align(4)
	return w.Bytes()
}

func unmarshalGoodbye(r *packet.Reader, count int, bodyLen int) (Goodbye, error) {
	var bye Goodbye
	if err := r.CheckRemaining(4 * count); err != nil {
		return bye, fmt.Errorf("rtcp: short goodbye: %w", err)
	}
	for i := 0; i < count; i++ {
		bye.Sources = append(bye.Sources, r.ReadUint32())
	}
	remaining := bodyLen - 4*count
	if remaining > 0 {
		reasonLen := int(r.ReadByte())
		remaining--
		if reasonLen > remaining {
			return bye, fmt.Errorf("rtcp: goodbye reason length %d exceeds remaining %d", reasonLen, remaining)
		}
		bye.Reason = string(r.ReadSlice(reasonLen))
		r.Skip(remaining - reasonLen)
	}
	return bye, nil
}

// writeHeader writes the 4-byte RTCP header. bodyLen must already be a
// multiple of 4. Per RFC 3550 §6.4.1, the length field is the number of
// 32-bit words in the packet (including the 4-byte header) minus one.
func writeHeader(w *packet.Writer, count byte, packetType byte, bodyLen int) {
	w.WriteByte(joinByte215(rtpVersion, false, count))
	w.WriteByte(packetType)
	w.WriteUint16(uint16(bodyLen / 4))
}

// CompoundPacket is a sequence of RTCP packets sent together in one
// datagram, per RFC 3550 §6.1 (an SR or RR must come first in a compound
// packet).
type CompoundPacket struct {
	SenderReport   *SenderReport
	ReceiverReport *ReceiverReport
	Goodbye        *Goodbye
}

// Marshal renders the compound packet with the SR (or RR) first, per spec
// §4.10/§6.
func (c CompoundPacket) Marshal() []byte {
	var out []byte
	switch {
	case c.SenderReport != nil:
		out = append(out, c.SenderReport.marshal()...)
	case c.ReceiverReport != nil:
		out = append(out, c.ReceiverReport.marshal()...)
	}
	if c.Goodbye != nil {
		out = append(out, c.Goodbye.marshal()...)
	}
	return out
}

// ParseCompoundPacket decodes a sequence of RTCP packets from a single
// datagram.
func ParseCompoundPacket(buf []byte) (CompoundPacket, error) {
	var c CompoundPacket
	r := packet.NewReader(buf)
	for r.Remaining() > 0 {
		if err := r.CheckRemaining(4); err != nil {
			return c, fmt.Errorf("rtcp: short header: %w", err)
		}
		version, _, count := splitByte215(r.ReadByte())
		if version != rtpVersion {
			return c, errBadVersion(version)
		}
		packetType := r.ReadByte()
		lengthWords := r.ReadUint16()
		bodyLen := int(lengthWords) * 4
		if err := r.CheckRemaining(bodyLen); err != nil {
			return c, fmt.Errorf("rtcp: short body: %w", err)
		}
		bodyReader := packet.NewReader(r.ReadSlice(bodyLen))

		switch packetType {
		case PtSenderReport:
			sr, err := unmarshalSenderReport(bodyReader, int(count))
			if err != nil {
				return c, err
			}
			c.SenderReport = &sr
		case PtReceiverReport:
			rr, err := unmarshalReceiverReport(bodyReader, int(count))
			if err != nil {
				return c, err
			}
			c.ReceiverReport = &rr
		case PtGoodbye:
			bye, err := unmarshalGoodbye(bodyReader, int(count), bodyLen)
			if err != nil {
				return c, err
			}
			c.Goodbye = &bye
		default:
			// Unknown/out-of-scope packet type (SDES, AVPF, ...): skip.
		}
	}
	return c, nil
}
