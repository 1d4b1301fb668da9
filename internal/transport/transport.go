// Package transport sends and receives UDP datagrams over raw IPv4
// sockets, bypassing the kernel UDP stack so every header field is under
// caller control.
//
// A raw socket bound to an address sees all protocol-17 traffic for that
// address, not only the bound port: the kernel does no port
// demultiplexing. Callers that care filter on Packet.Header().
//
// Each transport has a single owner. Send and Receive block; Receive can
// be bounded with Config.ReceiveTimeout.
package transport

import (
	"errors"
	"net/netip"
	"os"
	"time"

	"github.com/postalsys/rawudp/internal/udp"
)

var (
	// ErrSocketCreate is returned when the raw socket cannot be created.
	// Without CAP_NET_RAW (or root) this wraps EPERM.
	ErrSocketCreate = errors.New("create raw socket")

	// ErrBind is returned when the socket cannot be bound to the local address.
	ErrBind = errors.New("bind raw socket")

	// ErrEncode is returned when a datagram cannot be built for sending.
	ErrEncode = errors.New("encode datagram")

	// ErrTransmit is returned when the kernel rejects a send.
	ErrTransmit = errors.New("transmit datagram")

	// ErrReceive is returned when a read from the socket fails.
	ErrReceive = errors.New("receive datagram")

	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport closed")

	// ErrInvalidIPHeader is returned when a received datagram does not start
	// with a usable IPv4 header.
	ErrInvalidIPHeader = errors.New("invalid ipv4 header")
)

// DefaultBufferSize holds the largest possible IPv4 datagram.
const DefaultBufferSize = 65535

// Transport is the send/receive capability shared by the raw socket and
// the in-memory pipe.
type Transport interface {
	// Send builds a datagram from the local address to dst and writes it.
	// It returns the number of UDP bytes written (header plus payload).
	Send(payload []byte, dst netip.AddrPort) (int, error)

	// Receive reads one datagram of at most capacity bytes, IP header
	// included. The returned address carries the sender IP and the source
	// port from the UDP header.
	Receive(capacity int) (*udp.Packet, netip.AddrPort, error)

	// LocalAddr returns the bound address.
	LocalAddr() netip.AddrPort

	// Close releases the underlying resources.
	Close() error
}

var (
	_ Transport = (*RawTransport)(nil)
	_ Transport = (*Pipe)(nil)
	_ Transport = (*Instrumented)(nil)
)

// Config holds transport options.
type Config struct {
	// ReceiveTimeout bounds each Receive call.
	// 0 means block until a datagram arrives.
	ReceiveTimeout time.Duration

	// VerifyChecksum rejects received datagrams whose checksum does not
	// match the IP addresses they arrived with. Datagrams sent with a zero
	// checksum are always accepted.
	VerifyChecksum bool
}

// DefaultConfig returns a Config that blocks on receive and accepts any
// checksum.
func DefaultConfig() Config {
	return Config{}
}

// ErrorKind classifies err for metrics labels and log attributes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, udp.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, udp.ErrNotIPv4):
		return "not_ipv4"
	case errors.Is(err, udp.ErrTruncatedHeader), errors.Is(err, udp.ErrTruncatedPacket):
		return "truncated"
	case errors.Is(err, udp.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, udp.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrInvalidIPHeader):
		return "invalid_ip_header"
	case errors.Is(err, ErrSocketCreate):
		return "socket"
	case errors.Is(err, ErrBind):
		return "bind"
	case errors.Is(err, ErrTransmit):
		return "transmit"
	case errors.Is(err, ErrReceive):
		return "receive"
	case errors.Is(err, ErrEncode):
		return "encode"
	default:
		return "other"
	}
}
