// Package main provides the CLI entry point for rawudp.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/postalsys/rawudp/internal/config"
	"github.com/postalsys/rawudp/internal/health"
	"github.com/postalsys/rawudp/internal/listener"
	"github.com/postalsys/rawudp/internal/logging"
	"github.com/postalsys/rawudp/internal/metrics"
	"github.com/postalsys/rawudp/internal/sender"
	"github.com/postalsys/rawudp/internal/transport"
	"github.com/postalsys/rawudp/internal/wizard"
)

var (
	// Version is set at build time
	Version = "dev"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "rawudp",
		Short: "rawudp - UDP over raw IPv4 sockets",
		Long: `rawudp builds UDP datagrams by hand and sends them over a raw IPv4
socket, computing the header and checksum itself instead of leaving
them to the kernel.

Raw sockets require root or CAP_NET_RAW.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(sendCmd(g))
	rootCmd.AddCommand(listenCmd(g))
	rootCmd.AddCommand(selftestCmd(g))
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd(g))

	return rootCmd
}

// load reads the config file, if any, and applies the global flag overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		cfg, err = config.Load(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, nil
}

func transportConfig(cfg *config.Config) transport.Config {
	return transport.Config{
		ReceiveTimeout: cfg.Transport.ReceiveTimeout,
		VerifyChecksum: cfg.Transport.VerifyChecksum,
	}
}

func sendCmd(g *globalFlags) *cobra.Command {
	var bind, dest string
	var rate float64

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send each line of stdin as a UDP datagram",
		Long: `Read lines from stdin and send each one as a single UDP datagram
from --bind to --dest. Press Ctrl-D to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				cfg.Transport.Bind = bind
			}
			if cmd.Flags().Changed("dest") {
				cfg.Send.Destination = dest
			}
			if cmd.Flags().Changed("rate") {
				cfg.Send.Rate = rate
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			local, _ := cfg.BindAddr()
			dst, _ := cfg.DestinationAddr()

			raw, err := transport.Bind(local, transportConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer raw.Close()

			reg := prometheus.NewRegistry()
			m := metrics.NewMetricsWithRegistry(reg)
			s := sender.New(transport.Instrument(raw, m), sender.Config{
				Destination: dst,
				Rate:        cfg.Send.Rate,
				Burst:       cfg.Send.Burst,
			}, logger)

			stop, err := startHealth(cfg, reg, senderStats{s: s, local: local}, logger)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signalContext()
			defer cancel()

			err = s.Run(ctx, os.Stdin, os.Stderr)
			if errors.Is(err, context.Canceled) {
				err = nil
			}

			st := s.Stats()
			fmt.Fprintf(os.Stderr, "sent %d datagrams (%d failed)\n", st.Sent, st.Failed)
			return err
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "", "Local IPv4 address:port to bind")
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination IPv4 address:port")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Datagrams per second (0 = unlimited)")

	return cmd
}

func listenCmd(g *globalFlags) *cobra.Command {
	var bind, format string
	var count int
	var all, verify bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print UDP datagrams received on the bound address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				cfg.Transport.Bind = bind
			}
			if cmd.Flags().Changed("format") {
				cfg.Listen.Format = format
			}
			if cmd.Flags().Changed("count") {
				cfg.Listen.Count = count
			}
			if cmd.Flags().Changed("all") {
				cfg.Listen.FilterPort = !all
			}
			if cmd.Flags().Changed("verify-checksum") {
				cfg.Transport.VerifyChecksum = verify
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			local, _ := cfg.BindAddr()

			raw, err := transport.Bind(local, transportConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer raw.Close()

			reg := prometheus.NewRegistry()
			m := metrics.NewMetricsWithRegistry(reg)
			l, err := listener.New(transport.Instrument(raw, m), listener.Config{
				BufferSize: int(cfg.Transport.BufferSize),
				Format:     cfg.Listen.Format,
				Color:      term.IsTerminal(int(os.Stdout.Fd())),
				Count:      cfg.Listen.Count,
				FilterPort: cfg.Listen.FilterPort,
				Recorder:   m,
			}, os.Stdout, logger)
			if err != nil {
				return err
			}

			stop, err := startHealth(cfg, reg, listenerStats{l: l, local: local}, logger)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signalContext()
			defer cancel()

			if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&bind, "bind", "b", "", "Local IPv4 address:port to bind")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (text, hex, json)")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many datagrams (0 = unlimited)")
	cmd.Flags().BoolVar(&all, "all", false, "Show datagrams for every port, not only the bound one")
	cmd.Flags().BoolVar(&verify, "verify-checksum", false, "Drop datagrams with a bad checksum")

	return cmd
}

func selftestCmd(g *globalFlags) *cobra.Command {
	var src, dst, message string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Send a datagram between two loopback raw sockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

			srcAddr, err := netip.ParseAddrPort(src)
			if err != nil {
				return fmt.Errorf("invalid --src: %w", err)
			}
			dstAddr, err := netip.ParseAddrPort(dst)
			if err != nil {
				return fmt.Errorf("invalid --dst: %w", err)
			}

			tcfg := transport.Config{ReceiveTimeout: 200 * time.Millisecond, VerifyChecksum: true}
			a, err := transport.Bind(srcAddr, tcfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Printf("Bound source socket to %s\n", srcAddr)

			b, err := transport.Bind(dstAddr, tcfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()
			fmt.Printf("Bound destination socket to %s\n", dstAddr)

			return selftest(os.Stdout, a, b, message, timeout)
		},
	}

	cmd.Flags().StringVar(&src, "src", "127.0.0.1:9001", "Source IPv4 address:port")
	cmd.Flags().StringVar(&dst, "dst", "127.0.0.1:9002", "Destination IPv4 address:port")
	cmd.Flags().StringVarP(&message, "message", "m", "PING", "Payload to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the datagram")

	return cmd
}

// selftest sends message from a to b and waits for it to arrive, skipping
// unrelated traffic on b's address.
func selftest(out io.Writer, a, b transport.Transport, message string, timeout time.Duration) error {
	n, err := a.Send([]byte(message), b.LocalAddr())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d bytes to %s, waiting...\n", n, b.LocalAddr())

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pkt, from, err := b.Receive(transport.DefaultBufferSize)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			continue
		}
		h := pkt.Header()
		if h.DestinationPort() != b.LocalAddr().Port() || h.SourcePort() != a.LocalAddr().Port() {
			continue
		}

		fmt.Fprintf(out, "Received from %s: %q (checksum 0x%04x)\n", from, pkt.Text(), h.Checksum())
		if pkt.Text() != message {
			return fmt.Errorf("payload mismatch: got %q, want %q", pkt.Text(), message)
		}
		return nil
	}
	return fmt.Errorf("no datagram received within %s", timeout)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("init needs an interactive terminal")
			}
			_, err := wizard.New().Run()
			return err
		},
	}
}

func configCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

// startHealth starts the health server when enabled and returns its stop
// function.
func startHealth(cfg *config.Config, reg *prometheus.Registry, provider health.StatsProvider, logger *slog.Logger) (func(), error) {
	if !cfg.Health.Enabled {
		return func() {}, nil
	}

	hcfg := health.DefaultServerConfig()
	hcfg.Address = cfg.Health.Address
	hcfg.Gatherer = reg

	srv := health.NewServer(hcfg, provider, logger)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("failed to start health server: %w", err)
	}
	return func() { srv.Stop() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type senderStats struct {
	s     *sender.Sender
	local netip.AddrPort
}

func (p senderStats) IsRunning() bool { return p.s.IsRunning() }

func (p senderStats) Stats() health.Stats {
	st := p.s.Stats()
	return health.Stats{
		LocalAddr: p.local.String(),
		Sent:      st.Sent,
		Errors:    st.Failed,
		Bytes:     st.Bytes,
	}
}

type listenerStats struct {
	l     *listener.Listener
	local netip.AddrPort
}

func (p listenerStats) IsRunning() bool { return p.l.IsRunning() }

func (p listenerStats) Stats() health.Stats {
	st := p.l.Stats()
	return health.Stats{
		LocalAddr: p.local.String(),
		Received:  st.Received,
		Filtered:  st.Filtered,
		Errors:    st.Errors,
		Bytes:     st.Bytes,
	}
}
