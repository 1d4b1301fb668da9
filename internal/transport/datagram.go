package transport

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"

	"github.com/postalsys/rawudp/internal/udp"
)

// decodeDatagram strips the IPv4 header from a raw read and decodes the
// UDP datagram behind it. The header length comes from the IHL field, so
// IP options are skipped. from is the kernel-reported sender; when it is
// not valid the IP header source is used.
func decodeDatagram(b []byte, from netip.Addr, verify bool) (*udp.Packet, netip.AddrPort, error) {
	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: %v", ErrInvalidIPHeader, err)
	}
	if h.Version != ipv4.Version {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: version %d", ErrInvalidIPHeader, h.Version)
	}
	if h.Len < ipv4.HeaderLen || h.Len > len(b) {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: header length %d", ErrInvalidIPHeader, h.Len)
	}
	if h.Protocol != udp.ProtocolNumber {
		return nil, netip.AddrPort{}, fmt.Errorf("%w: protocol %d", ErrInvalidIPHeader, h.Protocol)
	}

	src, _ := netip.AddrFromSlice(h.Src.To4())
	dst, _ := netip.AddrFromSlice(h.Dst.To4())
	if !from.IsValid() {
		from = src
	}

	pkt, err := udp.DecodePacket(b[h.Len:])
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("datagram from %s: %w", from, err)
	}

	if verify {
		if err := pkt.VerifyChecksum(src, dst); err != nil {
			return nil, netip.AddrPort{}, fmt.Errorf("datagram from %s: %w", from, err)
		}
	}

	return pkt, netip.AddrPortFrom(from, pkt.Header().SourcePort()), nil
}

// encodeDatagram prefixes a UDP datagram with a minimal IPv4 header, the
// way the kernel does for raw sockets without IP_HDRINCL.
func encodeDatagram(src, dst netip.Addr, wire []byte) ([]byte, error) {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(wire),
		TTL:      64,
		Protocol: udp.ProtocolNumber,
		Src:      src.AsSlice(),
		Dst:      dst.AsSlice(),
	}

	hb, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	return append(hb, wire...), nil
}
