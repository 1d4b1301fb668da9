// Package sender reads lines from an input stream and sends each one as a
// UDP datagram over a transport.
package sender

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"sync/atomic"

	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/postalsys/rawudp/internal/logging"
	"github.com/postalsys/rawudp/internal/transport"
	"github.com/postalsys/rawudp/internal/udp"
)

// DefaultPrompt is written before each line when input is a terminal.
const DefaultPrompt = "> "

// Config holds sender parameters.
type Config struct {
	// Destination receives every datagram.
	Destination netip.AddrPort

	// Rate limits datagrams per second. 0 disables limiting.
	Rate float64

	// Burst is the limiter bucket size. Values below 1 become 1.
	Burst int

	// Prompt is written to the prompt writer before each line, only when
	// the input is a terminal. Empty means DefaultPrompt.
	Prompt string
}

// Stats is a snapshot of sender counters.
type Stats struct {
	Sent   uint64
	Failed uint64
	Bytes  uint64
}

// Sender sends one datagram per input line.
type Sender struct {
	tr      transport.Transport
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	sent    atomic.Uint64
	failed  atomic.Uint64
	bytes   atomic.Uint64
	running atomic.Bool
}

// New creates a sender. A nil logger discards output.
func New(tr transport.Transport, cfg Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}

	s := &Sender{
		tr:     tr,
		cfg:    cfg,
		logger: logger.With(logging.KeyComponent, "sender"),
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return s
}

// Run sends each line read from in until EOF or ctx is cancelled. Send
// failures are logged and counted, and the loop moves on to the next
// line. When in is a terminal, the prompt is written to prompt (which may
// be nil). Run returns nil on EOF, ctx.Err() on cancellation, and the
// read error otherwise.
func (s *Sender) Run(ctx context.Context, in io.Reader, prompt io.Writer) error {
	s.running.Store(true)
	defer s.running.Store(false)

	interactive := prompt != nil && isTerminal(in)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), udp.MaxPayloadLen+1)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		readErr <- scanner.Err()
	}()

	s.logger.Info("sending",
		slog.String(logging.KeyLocalAddr, s.tr.LocalAddr().String()),
		slog.String(logging.KeyRemoteAddr, s.cfg.Destination.String()))

	for {
		if interactive {
			fmt.Fprint(prompt, s.cfg.Prompt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return s.finish(<-readErr)
			}
			if err := s.wait(ctx); err != nil {
				return err
			}
			s.send(line)
		}
	}
}

// SendLine sends a single payload, waiting for the rate limiter first.
func (s *Sender) SendLine(ctx context.Context, line string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.send(line)
}

func (s *Sender) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Sender) send(line string) error {
	n, err := s.tr.Send([]byte(line), s.cfg.Destination)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("send failed",
			slog.String(logging.KeyRemoteAddr, s.cfg.Destination.String()),
			slog.String(logging.KeyKind, transport.ErrorKind(err)),
			slog.Any(logging.KeyError, err))
		return err
	}

	s.sent.Add(1)
	s.bytes.Add(uint64(n))
	s.logger.Debug("sent",
		slog.String(logging.KeyRemoteAddr, s.cfg.Destination.String()),
		slog.Int(logging.KeyBytes, n))
	return nil
}

func (s *Sender) finish(err error) error {
	st := s.Stats()
	s.logger.Info("input closed",
		slog.Uint64("sent", st.Sent),
		slog.Uint64("failed", st.Failed),
		slog.Uint64(logging.KeyBytes, st.Bytes))

	if errors.Is(err, bufio.ErrTooLong) {
		return fmt.Errorf("line exceeds %d bytes: %w", udp.MaxPayloadLen, udp.ErrPayloadTooLarge)
	}
	return err
}

// Stats returns a snapshot of the sender counters.
func (s *Sender) Stats() Stats {
	return Stats{
		Sent:   s.sent.Load(),
		Failed: s.failed.Load(),
		Bytes:  s.bytes.Load(),
	}
}

// IsRunning reports whether Run is active.
func (s *Sender) IsRunning() bool {
	return s.running.Load()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
