package udp

import "errors"

var (
	// ErrPayloadTooLarge is returned when 8 + payload length exceeds 65535.
	ErrPayloadTooLarge = errors.New("udp payload too large")

	// ErrTruncatedHeader is returned when fewer than 8 header bytes are supplied.
	ErrTruncatedHeader = errors.New("not enough bytes for udp header")

	// ErrTruncatedPacket is returned when a packet is shorter than its header.
	ErrTruncatedPacket = errors.New("not enough bytes for udp packet")

	// ErrLengthMismatch is returned when the header length field disagrees
	// with the number of bytes received.
	ErrLengthMismatch = errors.New("udp packet length mismatch")

	// ErrNotIPv4 is returned when an address is not an IPv4 address.
	ErrNotIPv4 = errors.New("not an ipv4 address")

	// ErrChecksumMismatch is returned by VerifyChecksum when the transmitted
	// checksum does not match the recomputed one.
	ErrChecksumMismatch = errors.New("udp checksum mismatch")
)
