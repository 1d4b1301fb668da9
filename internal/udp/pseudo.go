package udp

import "encoding/binary"

const (
	// PseudoHeaderLen is the size of the IPv4 pseudo-header in bytes.
	PseudoHeaderLen = 12

	// ProtocolNumber is the IANA protocol number for UDP.
	ProtocolNumber = 17
)

// PseudoHeader is the IPv4 pseudo-header prepended to a datagram for
// checksum computation only.
type PseudoHeader struct {
	Source      [4]byte
	Destination [4]byte
	Length      uint16
}

// NewPseudoHeader returns the pseudo-header for a datagram of udpLength
// bytes travelling from src to dst.
func NewPseudoHeader(src, dst [4]byte, udpLength uint16) PseudoHeader {
	return PseudoHeader{
		Source:      src,
		Destination: dst,
		Length:      udpLength,
	}
}

// Encode lays the pseudo-header out as
// src(4) | dst(4) | 0x00 | 0x11 | length(2).
func (p PseudoHeader) Encode() [PseudoHeaderLen]byte {
	var buf [PseudoHeaderLen]byte
	copy(buf[0:4], p.Source[:])
	copy(buf[4:8], p.Destination[:])
	buf[8] = 0
	buf[9] = ProtocolNumber
	binary.BigEndian.PutUint16(buf[10:12], p.Length)
	return buf
}
