// Package udp implements the UDP wire format (RFC 768) used by the raw
// transport: the 8-byte header, the IPv4 pseudo-header and the RFC 1071
// internet checksum that binds them together.
//
// # Wire format
//
// All fields are big-endian:
//
//	offset 0-1  source port
//	offset 2-3  destination port
//	offset 4-5  length (8 + payload length)
//	offset 6-7  checksum (0xFFFF when the computed sum is zero)
//
// A packet is the header followed by 0..65527 payload bytes.
//
// # Checksum
//
// The checksum covers the 12-byte pseudo-header (source IP, destination
// IP, zero, protocol 17, UDP length), the header with a zeroed checksum
// field and the payload. The pseudo-header only feeds the computation; it
// is never stored or transmitted.
//
// DecodePacket does not verify checksums. Call Packet.VerifyChecksum with
// the addresses from the IP layer when integrity matters.
package udp
