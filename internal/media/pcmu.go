//////////////////////////////////////////////////////////////////////////////
//
// PCM μ-law (ITU-T G.711) audio codec. This codec supports 8 kHz audio only.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"encoding/binary"
)

///////////////////////////////////  PCMU  ///////////////////////////////////

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// PCMUDecoder implements the Decoder interface for PCM μ-law.
type PCMUDecoder struct{}

// NewPCMUDecoder returns a new μ-law decoder.
func NewPCMUDecoder() *PCMUDecoder {
	return &PCMUDecoder{}
}

// Decode μ-law encoded buffer b into plain audio. Each 8-bit sample is
// expanded into one 16-bit little-endian linear PCM sample, so the output
// buffer is twice the length of the input buffer.
func (d *PCMUDecoder) Decode(b []byte) ([]byte, error) {
	buffer := make([]byte, 2*len(b))
	for i, sample := range b {
		pcm := muLawDecode(sample)
		binary.LittleEndian.PutUint16(buffer[2*i:], uint16(pcm))
	}
	return buffer, nil
}

func (d *PCMUDecoder) Close() error { return nil }

// PCMUEncoder implements the Encoder interface for PCM μ-law.
type PCMUEncoder struct{}

// NewPCMUEncoder returns a new μ-law encoder.
func NewPCMUEncoder() *PCMUEncoder {
	return &PCMUEncoder{}
}

// Encode plain audio buffer b into μ-law. Audio samples in b are expected in
// 16-bit little-endian linear PCM format.
func (e *PCMUEncoder) Encode(b []byte) ([]byte, error) {
	buffer := make([]byte, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(b[i:]))
		buffer[i/2] = muLawEncode(sample)
	}
	return buffer, nil
}

func (e *PCMUEncoder) Close() error { return nil }

// muLawEncode implements the standard ITU-T G.711 μ-law companding
// algorithm for one 16-bit linear PCM sample.
func muLawEncode(sample int16) byte {
	sign := byte(0x80)
	s := int32(sample)
	if s < 0 {
		s = -s
		sign = 0x00
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0f
	return ^(sign | exponent<<4 | mantissa)
}

// muLawDecode reverses muLawEncode, producing a 16-bit linear PCM sample.
func muLawDecode(value byte) int16 {
	value = ^value
	sign := value & 0x80
	exponent := (value >> 4) & 0x07
	mantissa := value & 0x0f

	magnitude := (int32(mantissa)<<3 + muLawBias) << exponent
	magnitude -= muLawBias

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
