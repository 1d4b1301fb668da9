package transport

import (
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/postalsys/rawudp/internal/udp"
)

// pipeQueueLen is how many datagrams a pipe end buffers before dropping.
const pipeQueueLen = 128

// Pipe is one end of an in-memory transport pair. Datagrams are framed
// with an IPv4 header and decoded through the same path as the raw
// socket, so everything above the socket behaves identically. Like a
// socket buffer, a full queue drops datagrams instead of blocking.
type Pipe struct {
	local netip.AddrPort
	cfg   Config
	peer  *Pipe

	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewPipe returns two connected ends bound to a and b. Everything one end
// sends is delivered to the other, whatever the destination port.
func NewPipe(a, b netip.AddrPort, cfg Config) (*Pipe, *Pipe) {
	pa := &Pipe{local: a, cfg: cfg, queue: make(chan []byte, pipeQueueLen), done: make(chan struct{})}
	pb := &Pipe{local: b, cfg: cfg, queue: make(chan []byte, pipeQueueLen), done: make(chan struct{})}
	pa.peer, pb.peer = pb, pa
	return pa, pb
}

// Send implements Transport.
func (p *Pipe) Send(payload []byte, dst netip.AddrPort) (int, error) {
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}

	pkt, err := udp.NewPacket(p.local, dst, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	wire := pkt.Encode()

	dg, err := encodeDatagram(p.local.Addr().Unmap(), dst.Addr().Unmap(), wire)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	select {
	case <-p.peer.done:
	case p.peer.queue <- dg:
	default:
	}

	return len(wire), nil
}

// Receive implements Transport.
func (p *Pipe) Receive(capacity int) (*udp.Packet, netip.AddrPort, error) {
	select {
	case <-p.done:
		return nil, netip.AddrPort{}, ErrClosed
	default:
	}
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}

	var timeout <-chan time.Time
	if p.cfg.ReceiveTimeout > 0 {
		timer := time.NewTimer(p.cfg.ReceiveTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-p.done:
		return nil, netip.AddrPort{}, ErrClosed
	case <-timeout:
		return nil, netip.AddrPort{}, fmt.Errorf("%w: %w", ErrReceive, os.ErrDeadlineExceeded)
	case dg := <-p.queue:
		if len(dg) > capacity {
			dg = dg[:capacity]
		}
		return decodeDatagram(dg, netip.Addr{}, p.cfg.VerifyChecksum)
	}
}

// Inject queues raw IPv4 datagram bytes for the next Receive, for feeding
// malformed or hand-built traffic.
func (p *Pipe) Inject(datagram []byte) {
	select {
	case p.queue <- datagram:
	default:
	}
}

// LocalAddr implements Transport.
func (p *Pipe) LocalAddr() netip.AddrPort {
	return p.local
}

// Close implements Transport.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
