package rtp

import "sort"

// frameAssembly groups the RTP packets of a single frame, keyed by
// timestamp, per spec §3/§4.7.
type frameAssembly struct {
	packets    []packetEntry
	markerSeen bool
}

type packetEntry struct {
	seq     uint16
	payload []byte
}

// JitterBuffer reorders RTP packets into complete, in-timestamp-order
// frames. A frame is emittable once its marker bit has been seen and no
// strictly older (by wrapping-32-bit comparison) incomplete frame remains.
type JitterBuffer struct {
	frames map[uint32]*frameAssembly
	order  []uint32 // timestamps seen, in arrival order of first packet

	lastEmitted     uint32
	haveLastEmitted bool

	// Extended highest sequence number tracking, per spec §4.7.
	cycles      uint32
	highestSeq  uint16
	haveHighest bool
}

func NewJitterBuffer() *JitterBuffer {
	return &JitterBuffer{frames: make(map[uint32]*frameAssembly)}
}

// Push adds one RTP packet to its frame's assembly. Packets older than the
// last-emitted timestamp are dropped.
func (jb *JitterBuffer) Push(h Header, payload []byte) {
	jb.updateExtendedSeq(h.Seq)

	if jb.haveLastEmitted && tsOlder(h.Timestamp, jb.lastEmitted) {
		return
	}

	f, ok := jb.frames[h.Timestamp]
	if !ok {
		f = &frameAssembly{}
		jb.frames[h.Timestamp] = f
		jb.order = append(jb.order, h.Timestamp)
	}
	f.packets = append(f.packets, packetEntry{seq: h.Seq, payload: payload})
	if h.Marker {
		f.markerSeen = true
	}
}

// Pop returns the oldest emittable, reconstructed frame, if any.
func (jb *JitterBuffer) Pop() ([]byte, bool) {
	if len(jb.order) == 0 {
		return nil, false
	}

	oldestTs := jb.order[0]
	for _, ts := range jb.order[1:] {
		if tsOlder(ts, oldestTs) {
			oldestTs = ts
		}
	}

	f := jb.frames[oldestTs]
	if f == nil || !f.markerSeen {
		return nil, false
	}

	sort.Slice(f.packets, func(i, j int) bool {
		return seqOlder(f.packets[i].seq, f.packets[j].seq)
	})
	payloads := make([][]byte, len(f.packets))
	for i, p := range f.packets {
		payloads[i] = p.payload
	}

	frame, err := Reassemble(payloads)
	if err != nil {
		jb.prune(oldestTs)
		return nil, false
	}

	jb.prune(oldestTs)
	jb.lastEmitted = oldestTs
	jb.haveLastEmitted = true
	return frame, true
}

func (jb *JitterBuffer) prune(ts uint32) {
	delete(jb.frames, ts)
	kept := jb.order[:0]
	for _, t := range jb.order {
		if t != ts {
			kept = append(kept, t)
		}
	}
	jb.order = kept
}

func (jb *JitterBuffer) updateExtendedSeq(seq uint16) {
	if !jb.haveHighest {
		jb.highestSeq = seq
		jb.haveHighest = true
		return
	}
	if seq < jb.highestSeq && jb.highestSeq-seq > 0x8000 {
		jb.cycles++
	}
	if seqOlder(jb.highestSeq, seq) {
		jb.highestSeq = seq
	}
}

// ExtendedHighestSeq returns (cycles << 16) | seq.
func (jb *JitterBuffer) ExtendedHighestSeq() uint32 {
	return jb.cycles<<16 | uint32(jb.highestSeq)
}

// seqOlder reports whether a precedes b under 16-bit wraparound.
func seqOlder(a, b uint16) bool {
	return int16(a-b) < 0
}

// tsOlder reports whether a is strictly older than b under 32-bit
// wraparound: a - b < 2^31 is "a is ahead of or equal to b", so a is older
// exactly when that's false and a != b.
func tsOlder(a, b uint32) bool {
	return a != b && (b-a) < 0x80000000
}
