package rtp

import "bytes"

// H.264 RTP packetization, per RFC 6184 and spec §4.7.

const (
	naluTypeFUA = 28

	// maxNalSize is the largest NAL unit that fits in a single RTP packet
	// before FU-A fragmentation kicks in.
	maxNalSize = 900
)

// SplitNALUs splits an H.264 Annex B bitstream at 00 00 00 01 start codes.
func SplitNALUs(bitstream []byte) [][]byte {
	const startCode = "\x00\x00\x00\x01"
	var nalus [][]byte
	rest := bitstream
	for {
		idx := bytes.Index(rest, []byte(startCode))
		if idx != 0 {
			break
		}
		rest = rest[len(startCode):]
		next := bytes.Index(rest, []byte(startCode))
		if next == -1 {
			if len(rest) > 0 {
				nalus = append(nalus, rest)
			}
			break
		}
		nalus = append(nalus, rest[:next])
		rest = rest[next:]
	}
	return nalus
}

// PacketizeNAL splits a single NAL unit into the RTP payloads that carry it:
// a single element for NALs of at most 900 bytes, or a sequence of FU-A
// fragments otherwise. The fragment boundaries fall at raw-NAL offsets that
// are multiples of 900 (so a NAL of exactly 900 bytes never fragments, and
// 901 bytes fragments into exactly two pieces).
func PacketizeNAL(nalu []byte) [][]byte {
	n := len(nalu)
	if n <= maxNalSize {
		return [][]byte{nalu}
	}

	indicator := nalu[0]&0xe0 | naluTypeFUA
	naluType := nalu[0] & 0x1f

	var fragments [][]byte
	for rawStart := 0; rawStart < n; rawStart += maxNalSize {
		rawEnd := rawStart + maxNalSize
		if rawEnd > n {
			rawEnd = n
		}
		payloadStart := rawStart
		if payloadStart == 0 {
			payloadStart = 1 // drop the original NAL header byte
		}

		start := rawStart == 0
		last := rawEnd == n
		header := naluType
		if start {
			header |= 0x80
		}
		if last {
			header |= 0x40
		}

		frag := make([]byte, 0, 2+rawEnd-payloadStart)
		frag = append(frag, indicator, header)
		frag = append(frag, nalu[payloadStart:rawEnd]...)
		fragments = append(fragments, frag)
	}
	return fragments
}

// frameTimestampStep is the RTP timestamp increment per video frame, for a
// 90 kHz clock at a 30 fps target.
const frameTimestampStep = 3000

// Reassemble concatenates the RTP payloads belonging to one NAL unit (in
// sequence order) back into the original Annex-B-prefixed NAL bytes.
func Reassemble(payloads [][]byte) ([]byte, error) {
	if len(payloads) == 1 && (payloads[0][0]&0x1f) != naluTypeFUA {
		return prefixStartCode(payloads[0]), nil
	}

	var buf bytes.Buffer
	var header byte
	for i, p := range payloads {
		indicator := p[0]
		fuHeader := p[1]
		if i == 0 {
			header = indicator&0xe0 | fuHeader&0x1f
		}
		buf.Write(p[2:])
	}
	out := append([]byte{header}, buf.Bytes()...)
	return prefixStartCode(out), nil
}

func prefixStartCode(nalu []byte) []byte {
	out := make([]byte, 0, 4+len(nalu))
	out = append(out, 0x00, 0x00, 0x00, 0x01)
	out = append(out, nalu...)
	return out
}
