package ice

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
)

// STUN (RFC 5389), restricted to the Binding Request/Success exchange this
// design needs: a 20-byte header plus, on success, a single XOR-MAPPED-ADDRESS
// attribute (IPv4 only).

const (
	stunHeaderLength = 20
	stunMagicCookie  = 0x2112A442

	stunBindingRequest = 0x0001
	stunBindingSuccess = 0x0101

	stunAttrXorMappedAddress = 0x0020
)

type stunMessage struct {
	msgType       uint16
	transactionID [12]byte
	mappedAddr    *net.UDPAddr // only set for Binding Success
}

func newTransactionID() [12]byte {
	var id [12]byte
	rand.Read(id[:])
	return id
}

func newBindingRequest() *stunMessage {
	return &stunMessage{msgType: stunBindingRequest, transactionID: newTransactionID()}
}

func newBindingSuccess(transactionID [12]byte, mapped *net.UDPAddr) *stunMessage {
	return &stunMessage{msgType: stunBindingSuccess, transactionID: transactionID, mappedAddr: mapped}
}

func (m *stunMessage) isRequest() bool {
	return m.msgType == stunBindingRequest
}

// encode serializes the message. Only IPv4 XOR-MAPPED-ADDRESS is supported.
func (m *stunMessage) encode() []byte {
	var attrs []byte
	if m.mappedAddr != nil {
		attrs = encodeXorMappedAddress(m.mappedAddr, m.transactionID)
	}

	buf := make([]byte, stunHeaderLength+len(attrs))
	binary.BigEndian.PutUint16(buf[0:2], m.msgType)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(attrs)))
	binary.BigEndian.PutUint32(buf[4:8], stunMagicCookie)
	copy(buf[8:20], m.transactionID[:])
	copy(buf[20:], attrs)
	return buf
}

// parseStunMessage returns (nil, nil) if data does not look like a STUN
// message at all, so callers can fall through rather than treat it as an
// error; a message that looks like STUN but is malformed returns an error
// and must be silently dropped per spec §4.2.
func parseStunMessage(data []byte) (*stunMessage, error) {
	if len(data) < stunHeaderLength {
		return nil, nil
	}
	msgType := binary.BigEndian.Uint16(data[0:2])
	if msgType>>14 != 0 {
		return nil, nil
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length)%4 != 0 {
		return nil, ErrMalformedStun
	}
	if binary.BigEndian.Uint32(data[4:8]) != stunMagicCookie {
		return nil, nil
	}
	if msgType != stunBindingRequest && msgType != stunBindingSuccess {
		return nil, fmt.Errorf("%w: unsupported STUN type %#x", ErrMalformedStun, msgType)
	}

	msg := &stunMessage{msgType: msgType}
	copy(msg.transactionID[:], data[8:20])

	body := data[20:]
	if int(length) > len(body) {
		return nil, ErrMalformedStun
	}
	body = body[:length]
	for len(body) > 0 {
		if len(body) < 4 {
			return nil, ErrMalformedStun
		}
		attrType := binary.BigEndian.Uint16(body[0:2])
		attrLen := binary.BigEndian.Uint16(body[2:4])
		if int(attrLen) > len(body)-4 {
			return nil, ErrMalformedStun
		}
		value := body[4 : 4+attrLen]
		if attrType == stunAttrXorMappedAddress {
			addr, err := decodeXorMappedAddress(value, msg.transactionID)
			if err != nil {
				return nil, err
			}
			msg.mappedAddr = addr
		}
		// advance past value, padded to a 4-byte boundary
		adv := 4 + int(attrLen) + pad4(attrLen)
		if adv > len(body) {
			adv = len(body)
		}
		body = body[adv:]
	}

	return msg, nil
}

func pad4(n uint16) int {
	return -int(n) & 3
}

func encodeXorMappedAddress(addr *net.UDPAddr, transactionID [12]byte) []byte {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	value := make([]byte, 8)
	value[1] = 0x01 // family: IPv4
	xPort := uint16(addr.Port) ^ uint16(stunMagicCookie>>16)
	binary.BigEndian.PutUint16(value[2:4], xPort)
	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], stunMagicCookie)
	for i := 0; i < 4; i++ {
		value[4+i] = ip4[i] ^ cookie[i]
	}

	attr := make([]byte, 4+len(value))
	binary.BigEndian.PutUint16(attr[0:2], stunAttrXorMappedAddress)
	binary.BigEndian.PutUint16(attr[2:4], uint16(len(value)))
	copy(attr[4:], value)
	return attr
}

func decodeXorMappedAddress(value []byte, transactionID [12]byte) (*net.UDPAddr, error) {
	if len(value) < 8 {
		return nil, ErrMalformedStun
	}
	if value[1] != 0x01 {
		return nil, fmt.Errorf("%w: only IPv4 XOR-MAPPED-ADDRESS is supported", ErrMalformedStun)
	}
	port := binary.BigEndian.Uint16(value[2:4]) ^ uint16(stunMagicCookie>>16)

	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], stunMagicCookie)
	ip := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		ip[i] = value[4+i] ^ cookie[i]
	}
	return &net.UDPAddr{IP: ip, Port: int(port)}, nil
}
