package transport

import (
	"errors"
	"net/netip"
	"os"

	"github.com/postalsys/rawudp/internal/udp"
)

// Recorder receives transport events. metrics.Metrics implements it.
type Recorder interface {
	RecordSend(bytes int)
	RecordReceive(bytes int)
	RecordError(op, kind string)
}

// Instrumented wraps a Transport and reports every operation to a Recorder.
// Receive timeouts are not counted as errors.
type Instrumented struct {
	Transport
	rec Recorder
}

// Instrument wraps t so that its traffic is recorded by rec.
func Instrument(t Transport, rec Recorder) *Instrumented {
	return &Instrumented{Transport: t, rec: rec}
}

// Send implements Transport.
func (i *Instrumented) Send(payload []byte, dst netip.AddrPort) (int, error) {
	n, err := i.Transport.Send(payload, dst)
	if err != nil {
		i.rec.RecordError("send", ErrorKind(err))
		return n, err
	}
	i.rec.RecordSend(n)
	return n, nil
}

// Receive implements Transport.
func (i *Instrumented) Receive(capacity int) (*udp.Packet, netip.AddrPort, error) {
	pkt, from, err := i.Transport.Receive(capacity)
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			i.rec.RecordError("receive", ErrorKind(err))
		}
		return nil, from, err
	}
	i.rec.RecordReceive(int(pkt.Header().Length()))
	return pkt, from, nil
}
