package transport

import (
	"errors"
	"os"
	"testing"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/postalsys/rawudp/internal/udp"
)

func TestPipe_SendReceive(t *testing.T) {
	a, b := NewPipe(addrA, addrB, DefaultConfig())
	defer a.Close()
	defer b.Close()

	n, err := a.Send([]byte("PING"), b.LocalAddr())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if n != udp.HeaderLen+4 {
		t.Errorf("Send() = %d bytes, want %d", n, udp.HeaderLen+4)
	}

	pkt, from, err := b.Receive(DefaultBufferSize)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if pkt.Text() != "PING" {
		t.Errorf("payload = %q, want PING", pkt.Text())
	}
	if from != addrA {
		t.Errorf("from = %s, want %s", from, addrA)
	}
	if pkt.Header().DestinationPort() != addrB.Port() {
		t.Errorf("DestinationPort = %d, want %d", pkt.Header().DestinationPort(), addrB.Port())
	}
	if err := pkt.VerifyChecksum(addrA.Addr(), addrB.Addr()); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}
}

func TestPipe_Bidirectional(t *testing.T) {
	a, b := NewPipe(addrA, addrB, DefaultConfig())

	if _, err := b.Send([]byte("PONG"), a.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	pkt, from, err := a.Receive(0)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if pkt.Text() != "PONG" || from != addrB {
		t.Errorf("got %q from %s, want PONG from %s", pkt.Text(), from, addrB)
	}
}

func TestPipe_ReceiveTimeout(t *testing.T) {
	_, b := NewPipe(addrA, addrB, Config{ReceiveTimeout: 10 * time.Millisecond})

	start := time.Now()
	_, _, err := b.Receive(DefaultBufferSize)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Receive() error = %v, want os.ErrDeadlineExceeded", err)
	}
	if !errors.Is(err, ErrReceive) {
		t.Errorf("Receive() error = %v, want ErrReceive", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Receive() took %v, want about 10ms", elapsed)
	}
}

func TestPipe_Closed(t *testing.T) {
	a, b := NewPipe(addrA, addrB, DefaultConfig())

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if _, err := a.Send([]byte("x"), addrB); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
	if _, _, err := a.Receive(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() after Close error = %v, want ErrClosed", err)
	}

	// Sending to a closed peer is not an error, the datagram is lost.
	if _, err := b.Send([]byte("x"), addrA); err != nil {
		t.Errorf("Send() to closed peer error = %v, want nil", err)
	}
}

func TestPipe_PayloadTooLarge(t *testing.T) {
	a, _ := NewPipe(addrA, addrB, DefaultConfig())

	_, err := a.Send(make([]byte, udp.MaxPayloadLen+1), addrB)
	if !errors.Is(err, ErrEncode) {
		t.Errorf("Send() error = %v, want ErrEncode", err)
	}
	if !errors.Is(err, udp.ErrPayloadTooLarge) {
		t.Errorf("Send() error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestPipe_CapacityTruncates(t *testing.T) {
	a, b := NewPipe(addrA, addrB, DefaultConfig())

	if _, err := a.Send([]byte("a longer payload"), addrB); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	_, _, err := b.Receive(32)
	if !errors.Is(err, udp.ErrLengthMismatch) {
		t.Errorf("Receive(32) error = %v, want ErrLengthMismatch", err)
	}

	// The transport stays usable after a decode error.
	if _, err := a.Send([]byte("ok"), addrB); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	pkt, _, err := b.Receive(DefaultBufferSize)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if pkt.Text() != "ok" {
		t.Errorf("payload = %q, want ok", pkt.Text())
	}
}

func TestPipe_Inject(t *testing.T) {
	_, b := NewPipe(addrA, addrB, DefaultConfig())

	wire := mustWire(t, addrA, addrB, "PING")
	dg, _ := encodeDatagram(addrA.Addr(), addrB.Addr(), wire)
	dg[ipv4.HeaderLen+5] = 200 // UDP length, low byte
	b.Inject(dg)

	if _, _, err := b.Receive(0); !errors.Is(err, udp.ErrLengthMismatch) {
		t.Errorf("Receive() error = %v, want ErrLengthMismatch", err)
	}
}
