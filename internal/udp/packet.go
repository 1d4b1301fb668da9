package udp

import (
	"fmt"
	"net/netip"
	"strings"
)

// Packet is a UDP header together with its payload.
type Packet struct {
	header  Header
	payload []byte
}

// NewPacket builds a packet from src to dst carrying payload and stores
// its checksum. Ports feed the header; IPs feed only the pseudo-header.
func NewPacket(src, dst netip.AddrPort, payload []byte) (*Packet, error) {
	srcIP, err := ipv4Bytes(src.Addr())
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Addr(), err)
	}
	dstIP, err := ipv4Bytes(dst.Addr())
	if err != nil {
		return nil, fmt.Errorf("destination %s: %w", dst.Addr(), err)
	}

	header, err := NewHeader(src.Port(), dst.Port(), len(payload))
	if err != nil {
		return nil, err
	}

	p := &Packet{header: header, payload: payload}
	p.header.SetChecksum(p.computeChecksum(srcIP, dstIP))

	return p, nil
}

// computeChecksum sums pseudo-header | header (checksum zeroed) | payload.
func (p *Packet) computeChecksum(srcIP, dstIP [4]byte) uint16 {
	pseudo := NewPseudoHeader(srcIP, dstIP, p.header.length)

	hdr := p.header
	hdr.SetChecksum(0)

	buf := make([]byte, 0, PseudoHeaderLen+HeaderLen+len(p.payload))
	ph := pseudo.Encode()
	buf = append(buf, ph[:]...)
	hb := hdr.Encode()
	buf = append(buf, hb[:]...)
	buf = append(buf, p.payload...)

	return Checksum(buf)
}

// VerifyChecksum recomputes the checksum for a packet that travelled from
// src to dst and compares it with the transmitted one. A transmitted
// checksum of zero means the sender disabled checksumming and is accepted.
func (p *Packet) VerifyChecksum(src, dst netip.Addr) error {
	if p.header.checksum == 0 {
		return nil
	}

	srcIP, err := ipv4Bytes(src)
	if err != nil {
		return fmt.Errorf("source %s: %w", src, err)
	}
	dstIP, err := ipv4Bytes(dst)
	if err != nil {
		return fmt.Errorf("destination %s: %w", dst, err)
	}

	if want := p.computeChecksum(srcIP, dstIP); want != p.header.checksum {
		return fmt.Errorf("%w: got 0x%04x, want 0x%04x", ErrChecksumMismatch, p.header.checksum, want)
	}
	return nil
}

// Encode serializes the packet as header | payload.
func (p *Packet) Encode() []byte {
	buf := make([]byte, 0, HeaderLen+len(p.payload))
	hb := p.header.Encode()
	buf = append(buf, hb[:]...)
	return append(buf, p.payload...)
}

// DecodePacket parses a complete UDP datagram. The header length must
// match len(b) exactly. The checksum is not verified.
func DecodePacket(b []byte) (*Packet, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTruncatedPacket, len(b))
	}

	header, err := DecodeHeader(b[:HeaderLen])
	if err != nil {
		return nil, err
	}

	if int(header.length) != len(b) {
		return nil, fmt.Errorf("%w: header says %d bytes, got %d", ErrLengthMismatch, header.length, len(b))
	}

	payload := make([]byte, len(b)-HeaderLen)
	copy(payload, b[HeaderLen:])

	return &Packet{header: header, payload: payload}, nil
}

// Header returns a copy of the packet header.
func (p *Packet) Header() Header {
	return p.header
}

// Payload returns the payload bytes.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Text returns the payload as a string, replacing invalid UTF-8.
func (p *Packet) Text() string {
	return strings.ToValidUTF8(string(p.payload), "\uFFFD")
}

// String returns a debug representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("Packet{Src=%d, Dst=%d, Len=%d, Csum=0x%04x, PayloadLen=%d}",
		p.header.sourcePort, p.header.destinationPort, p.header.length, p.header.checksum, len(p.payload))
}

func ipv4Bytes(addr netip.Addr) ([4]byte, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return [4]byte{}, ErrNotIPv4
	}
	return addr.As4(), nil
}
