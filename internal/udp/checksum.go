package udp

// Checksum computes the RFC 1071 internet checksum of b as used by UDP.
// An odd trailing byte is padded with zero. A computed value of zero is
// returned as 0xFFFF, since zero on the wire means "no checksum".
func Checksum(b []byte) uint16 {
	var sum uint32

	for ; len(b) >= 2; b = b[2:] {
		sum += uint32(b[0])<<8 | uint32(b[1])
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}

	for sum > 0xFFFF {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}

	csum := ^uint16(sum)
	if csum == 0 {
		return 0xFFFF
	}
	return csum
}
