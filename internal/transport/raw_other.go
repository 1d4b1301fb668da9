//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/postalsys/rawudp/internal/udp"
)

// RawTransport is unavailable on this platform.
type RawTransport struct {
	local netip.AddrPort
}

// Bind always fails: raw IPv4 sockets are not supported here.
func Bind(local netip.AddrPort, cfg Config, logger *slog.Logger) (*RawTransport, error) {
	return nil, fmt.Errorf("%w: %w", ErrSocketCreate, errors.ErrUnsupported)
}

func (t *RawTransport) Send(payload []byte, dst netip.AddrPort) (int, error) {
	return 0, ErrClosed
}

func (t *RawTransport) Receive(capacity int) (*udp.Packet, netip.AddrPort, error) {
	return nil, netip.AddrPort{}, ErrClosed
}

func (t *RawTransport) LocalAddr() netip.AddrPort { return t.local }

func (t *RawTransport) Close() error { return nil }
