// Package listener receives datagrams from a transport and writes them
// to an output stream.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/postalsys/rawudp/internal/logging"
	"github.com/postalsys/rawudp/internal/transport"
)

// FilterRecorder is told about datagrams dropped by the port filter.
type FilterRecorder interface {
	RecordFiltered()
}

// Config holds listener parameters.
type Config struct {
	// BufferSize is the receive capacity. 0 means transport.DefaultBufferSize.
	BufferSize int

	// Format is text, hex or json.
	Format string

	// Color styles text output.
	Color bool

	// Count stops the listener after that many datagrams. 0 is unlimited.
	Count int

	// FilterPort drops datagrams whose destination port differs from the
	// transport's bound port.
	FilterPort bool

	// Recorder, if set, counts filtered datagrams.
	Recorder FilterRecorder
}

// Stats is a snapshot of listener counters.
type Stats struct {
	Received uint64
	Filtered uint64
	Errors   uint64
	Bytes    uint64
}

// Listener prints every datagram received on a transport.
type Listener struct {
	tr     transport.Transport
	cfg    Config
	out    io.Writer
	format Formatter
	logger *slog.Logger

	received atomic.Uint64
	filtered atomic.Uint64
	errors   atomic.Uint64
	bytes    atomic.Uint64
	running  atomic.Bool
}

// New creates a listener writing to out. A nil logger discards output.
func New(tr transport.Transport, cfg Config, out io.Writer, logger *slog.Logger) (*Listener, error) {
	f, err := NewFormatter(cfg.Format, cfg.Color)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = transport.DefaultBufferSize
	}

	return &Listener{
		tr:     tr,
		cfg:    cfg,
		out:    out,
		format: f,
		logger: logger.With(logging.KeyComponent, "listener"),
	}, nil
}

// Run receives until ctx is cancelled, Count datagrams have been written,
// or the transport is closed. Cancellation is observed between receives,
// so the transport should carry a receive timeout. Decode errors are
// logged and counted without stopping the loop.
func (l *Listener) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	local := l.tr.LocalAddr()
	l.logger.Info("listening",
		slog.String(logging.KeyLocalAddr, local.String()),
		slog.Bool("filter_port", l.cfg.FilterPort))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, from, err := l.tr.Receive(l.cfg.BufferSize)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case errors.Is(err, transport.ErrClosed):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			case errors.Is(err, transport.ErrReceive):
				// Socket-level failure; nothing was decoded.
				l.errors.Add(1)
				return err
			}

			l.errors.Add(1)
			l.logger.Warn("dropped datagram",
				slog.String(logging.KeyKind, transport.ErrorKind(err)),
				slog.Any(logging.KeyError, err))
			continue
		}

		if l.cfg.FilterPort && pkt.Header().DestinationPort() != local.Port() {
			l.filtered.Add(1)
			if l.cfg.Recorder != nil {
				l.cfg.Recorder.RecordFiltered()
			}
			continue
		}

		l.bytes.Add(uint64(pkt.Header().Length()))
		n := l.received.Add(1)
		l.logger.Debug("received",
			slog.String(logging.KeyRemoteAddr, from.String()),
			slog.Int(logging.KeyBytes, int(pkt.Header().Length())))

		if err := l.format.Format(l.out, pkt, from); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		if l.cfg.Count > 0 && n >= uint64(l.cfg.Count) {
			l.logger.Info("count reached", slog.Int(logging.KeyCount, l.cfg.Count))
			return nil
		}
	}
}

// Stats returns a snapshot of the listener counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received: l.received.Load(),
		Filtered: l.filtered.Load(),
		Errors:   l.errors.Load(),
		Bytes:    l.bytes.Load(),
	}
}

// IsRunning reports whether Run is active.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
