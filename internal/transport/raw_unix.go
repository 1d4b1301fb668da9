//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/postalsys/rawudp/internal/logging"
	"github.com/postalsys/rawudp/internal/udp"
)

// RawTransport owns a raw IPv4 socket for protocol 17 bound to a local
// address.
type RawTransport struct {
	fd     int
	local  netip.AddrPort
	cfg    Config
	logger *slog.Logger

	closeOnce sync.Once
	closed    bool
	closeErr  error
	cleanup   runtime.Cleanup
}

// Bind creates a raw UDP socket and binds it to local. Raw sockets need
// CAP_NET_RAW or root; without it the returned error wraps both
// ErrSocketCreate and EPERM.
func Bind(local netip.AddrPort, cfg Config, logger *slog.Logger) (*RawTransport, error) {
	addr := local.Addr().Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, local, udp.ErrNotIPv4)
	}
	local = netip.AddrPortFrom(addr, local.Port())

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocketCreate, err)
	}
	unix.CloseOnExec(fd)

	if err := unix.Bind(fd, sockaddr(local)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, local, err)
	}

	if cfg.ReceiveTimeout > 0 {
		tv := unix.NsecToTimeval(cfg.ReceiveTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("%w: set receive timeout: %w", ErrSocketCreate, err)
		}
	}

	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With(slog.String(logging.KeyComponent, "transport"))

	if addr.IsUnspecified() {
		logger.Warn("bound to unspecified address; outgoing checksums will not match the kernel-selected source IP",
			slog.String(logging.KeyLocalAddr, local.String()))
	}

	t := &RawTransport{
		fd:     fd,
		local:  local,
		cfg:    cfg,
		logger: logger,
	}
	t.cleanup = runtime.AddCleanup(t, func(fd int) { unix.Close(fd) }, fd)

	logger.Debug("raw socket bound", slog.String(logging.KeyLocalAddr, local.String()))

	return t, nil
}

// Send builds a datagram from the bound address to dst and writes it with
// a single sendto.
func (t *RawTransport) Send(payload []byte, dst netip.AddrPort) (int, error) {
	if t.closed {
		return 0, ErrClosed
	}

	pkt, err := udp.NewPacket(t.local, dst, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	wire := pkt.Encode()

	for {
		err = unix.Sendto(t.fd, wire, 0, sockaddr(dst))
		if err != unix.EINTR {
			break
		}
	}
	runtime.KeepAlive(t)
	if err != nil {
		return 0, fmt.Errorf("%w: to %s: %w", ErrTransmit, dst, err)
	}

	t.logger.Debug("sent datagram",
		slog.String(logging.KeyRemoteAddr, dst.String()),
		slog.Int(logging.KeyBytes, len(wire)),
		slog.String(logging.KeyChecksum, fmt.Sprintf("0x%04x", pkt.Header().Checksum())))

	return len(wire), nil
}

// Receive performs a single recvfrom of up to capacity bytes, strips the
// IPv4 header and decodes the UDP datagram. A capacity of 0 or less uses
// DefaultBufferSize. Datagrams longer than capacity are truncated by the
// kernel and fail with udp.ErrLengthMismatch.
func (t *RawTransport) Receive(capacity int) (*udp.Packet, netip.AddrPort, error) {
	if t.closed {
		return nil, netip.AddrPort{}, ErrClosed
	}
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}

	buf := make([]byte, capacity)

	var (
		n    int
		from unix.Sockaddr
		err  error
	)
	for {
		n, from, err = unix.Recvfrom(t.fd, buf, 0)
		if err != unix.EINTR {
			break
		}
	}
	runtime.KeepAlive(t)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil, netip.AddrPort{}, fmt.Errorf("%w: %w", ErrReceive, os.ErrDeadlineExceeded)
		}
		return nil, netip.AddrPort{}, fmt.Errorf("%w: %w", ErrReceive, err)
	}

	var sender netip.Addr
	if sa, ok := from.(*unix.SockaddrInet4); ok {
		sender = netip.AddrFrom4(sa.Addr)
	}

	pkt, addr, err := decodeDatagram(buf[:n], sender, t.cfg.VerifyChecksum)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}

	t.logger.Debug("received datagram",
		slog.String(logging.KeyRemoteAddr, addr.String()),
		slog.Int(logging.KeyBytes, int(pkt.Header().Length())))

	return pkt, addr, nil
}

// LocalAddr returns the bound address.
func (t *RawTransport) LocalAddr() netip.AddrPort {
	return t.local
}

// Close releases the socket. Subsequent calls return the first result.
func (t *RawTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed = true
		t.cleanup.Stop()
		if err := unix.Close(t.fd); err != nil {
			t.closeErr = fmt.Errorf("close raw socket: %w", err)
		}
	})
	return t.closeErr
}

func sockaddr(ap netip.AddrPort) *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{
		Port: int(ap.Port()),
		Addr: ap.Addr().Unmap().As4(),
	}
}
