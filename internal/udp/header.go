package udp

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderLen is the size of the UDP header in bytes.
	HeaderLen = 8

	// MaxLength is the largest value the 16-bit length field can carry.
	MaxLength = 0xFFFF

	// MaxPayloadLen is the largest payload that fits in a single datagram.
	MaxPayloadLen = MaxLength - HeaderLen
)

// Header is the fixed 8-byte UDP header.
// Only the checksum may change after construction.
type Header struct {
	sourcePort      uint16
	destinationPort uint16
	length          uint16
	checksum        uint16
}

// NewHeader builds a header for a payload of payloadLen bytes. The checksum
// is left at zero until the owning packet computes it.
func NewHeader(sourcePort, destinationPort uint16, payloadLen int) (Header, error) {
	if payloadLen < 0 || payloadLen > MaxPayloadLen {
		return Header{}, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, payloadLen, MaxPayloadLen)
	}

	return Header{
		sourcePort:      sourcePort,
		destinationPort: destinationPort,
		length:          uint16(HeaderLen + payloadLen),
	}, nil
}

// DecodeHeader reads a header from the first 8 bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrTruncatedHeader, len(b))
	}

	return Header{
		sourcePort:      binary.BigEndian.Uint16(b[0:2]),
		destinationPort: binary.BigEndian.Uint16(b[2:4]),
		length:          binary.BigEndian.Uint16(b[4:6]),
		checksum:        binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

// Encode serializes the header in network byte order.
func (h Header) Encode() [HeaderLen]byte {
	var buf [HeaderLen]byte
	binary.BigEndian.PutUint16(buf[0:2], h.sourcePort)
	binary.BigEndian.PutUint16(buf[2:4], h.destinationPort)
	binary.BigEndian.PutUint16(buf[4:6], h.length)
	binary.BigEndian.PutUint16(buf[6:8], h.checksum)
	return buf
}

// SetChecksum stores the checksum field.
func (h *Header) SetChecksum(checksum uint16) {
	h.checksum = checksum
}

// SourcePort returns the source port.
func (h Header) SourcePort() uint16 { return h.sourcePort }

// DestinationPort returns the destination port.
func (h Header) DestinationPort() uint16 { return h.destinationPort }

// Length returns the total datagram length (header plus payload).
func (h Header) Length() uint16 { return h.length }

// Checksum returns the checksum field. Zero means "not computed".
func (h Header) Checksum() uint16 { return h.checksum }

// String returns a debug representation of the header.
func (h Header) String() string {
	return fmt.Sprintf("Header{Src=%d, Dst=%d, Len=%d, Csum=0x%04x}",
		h.sourcePort, h.destinationPort, h.length, h.checksum)
}
