package rtp

import (
	"fmt"

	"github.com/roomrtc/corertc/internal/packet"
)

// Video and audio use fixed SSRC values per spec §3/§9.
const (
	VideoSSRC uint32 = 1000
	AudioSSRC uint32 = 2000
)

const headerSize = 12

// Header is the 12-byte-fixed (+4·CSRC) RTP header, per RFC 3550 §5.1.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|V=2|P|X|  CC   |M|     PT      |       sequence number        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                           timestamp                          |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           synchronization source (SSRC) identifier           |
//	+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//	|            contributing source (CSRC) identifiers            |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type Header struct {
	Padding     bool
	Extension   bool
	Marker      bool
	PayloadType byte
	Seq         uint16
	Timestamp   uint32
	SSRC        uint32
	CSRC        []uint32
}

func (h Header) length() int {
	return headerSize + 4*len(h.CSRC)
}

// WriteTo serializes the header into w.
func (h Header) WriteTo(w *packet.Writer) {
	w.WriteByte(joinByte2114(rtpVersion, h.Padding, h.Extension, byte(len(h.CSRC))))
	w.WriteByte(joinByte17(h.Marker, h.PayloadType))
	w.WriteUint16(h.Seq)
	w.WriteUint32(h.Timestamp)
	w.WriteUint32(h.SSRC)
	for _, csrc := range h.CSRC {
		w.WriteUint32(csrc)
	}
}

// ReadHeader deserializes a header from r.
func ReadHeader(r *packet.Reader) (Header, error) {
	var h Header
	if err := r.CheckRemaining(headerSize); err != nil {
		return h, fmt.Errorf("rtp: short header: %w", err)
	}
	var version, csrcCount byte
	version, h.Padding, h.Extension, csrcCount = splitByte2114(r.ReadByte())
	if version != rtpVersion {
		return h, errBadVersion(version)
	}
	if err := r.CheckRemaining(4*int(csrcCount) + 11); err != nil {
		return h, fmt.Errorf("rtp: short header: %w", err)
	}
	h.Marker, h.PayloadType = splitByte17(r.ReadByte())
	h.Seq = r.ReadUint16()
	h.Timestamp = r.ReadUint32()
	h.SSRC = r.ReadUint32()
	for i := 0; i < int(csrcCount); i++ {
		h.CSRC = append(h.CSRC, r.ReadUint32())
	}
	return h, nil
}

// Packet marshals a header and payload into a single RTP datagram.
func Packet(h Header, payload []byte) []byte {
	w := packet.NewWriterSize(h.length() + len(payload))
	h.WriteTo(w)
	w.WriteSlice(payload)
	return w.Bytes()
}

// ParsePacket splits a raw RTP datagram into its header and payload.
func ParsePacket(buf []byte) (Header, []byte, error) {
	r := packet.NewReader(buf)
	h, err := ReadHeader(r)
	if err != nil {
		return h, nil, err
	}
	return h, r.ReadRemaining(), nil
}
