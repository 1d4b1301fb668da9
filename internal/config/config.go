// Package config provides configuration parsing and validation for rawudp.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config represents the complete rawudp configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Send      SendConfig      `yaml:"send"`
	Listen    ListenConfig    `yaml:"listen"`
	Health    HealthConfig    `yaml:"health"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TransportConfig contains raw socket settings.
type TransportConfig struct {
	Bind           string        `yaml:"bind"`            // local IPv4 address and port
	BufferSize     ByteSize      `yaml:"buffer_size"`     // receive capacity
	ReceiveTimeout time.Duration `yaml:"receive_timeout"` // 0 = block forever
	VerifyChecksum bool          `yaml:"verify_checksum"`
}

// SendConfig contains sender settings.
type SendConfig struct {
	Destination string  `yaml:"destination"`
	Rate        float64 `yaml:"rate"`  // datagrams per second, 0 = unlimited
	Burst       int     `yaml:"burst"` // limiter burst
}

// ListenConfig contains listener settings.
type ListenConfig struct {
	Format     string `yaml:"format"`      // text, hex, json
	Count      int    `yaml:"count"`       // 0 = unlimited
	FilterPort bool   `yaml:"filter_port"` // drop datagrams not addressed to the bound port
}

// HealthConfig defines health check server settings.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// ByteSize is a byte count that accepts human-readable sizes in YAML
// ("64KiB", "1500", "9kB").
type ByteSize int

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	n, err := ParseSize(node.Value)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return int(b), nil
}

// String returns the size in IEC units.
func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int(b))
	}
	return humanize.IBytes(uint64(b))
}

// ParseSize parses a human-readable size string to bytes.
// Decimal (kB, MB) and binary (KiB, MiB) units are accepted, and a
// plain number is a byte count.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format '%s': %w", s, err)
	}
	return int64(n), nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Transport: TransportConfig{
			Bind:           "127.0.0.1:9001",
			BufferSize:     65535,
			ReceiveTimeout: 500 * time.Millisecond,
			VerifyChecksum: false,
		},
		Send: SendConfig{
			Destination: "127.0.0.1:9002",
			Rate:        0,
			Burst:       1,
		},
		Listen: ListenConfig{
			Format:     "text",
			Count:      0,
			FilterPort: true,
		},
		Health: HealthConfig{
			Enabled: false,
			Address: "127.0.0.1:8080",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
// ${VAR:-default} falls back to default; unknown variables are left as is.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if err := validateIPv4AddrPort(c.Transport.Bind); err != nil {
		errs = append(errs, fmt.Sprintf("transport.bind: %v", err))
	}
	if c.Transport.BufferSize < 28 || c.Transport.BufferSize > 65535 {
		errs = append(errs, "transport.buffer_size must be between 28 and 65535")
	}
	if c.Transport.ReceiveTimeout < 0 {
		errs = append(errs, "transport.receive_timeout must not be negative")
	}

	if c.Send.Destination != "" {
		if err := validateIPv4AddrPort(c.Send.Destination); err != nil {
			errs = append(errs, fmt.Sprintf("send.destination: %v", err))
		}
	}
	if c.Send.Rate < 0 {
		errs = append(errs, "send.rate must not be negative")
	}
	if c.Send.Rate > 0 && c.Send.Burst < 1 {
		errs = append(errs, "send.burst must be at least 1 when send.rate is set")
	}

	if !isValidListenFormat(c.Listen.Format) {
		errs = append(errs, fmt.Sprintf("invalid listen.format: %s (must be text, hex, or json)", c.Listen.Format))
	}
	if c.Listen.Count < 0 {
		errs = append(errs, "listen.count must not be negative")
	}

	if c.Health.Enabled && c.Health.Address == "" {
		errs = append(errs, "health.address is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

func isValidListenFormat(format string) bool {
	switch format {
	case "text", "hex", "json":
		return true
	default:
		return false
	}
}

func validateIPv4AddrPort(s string) error {
	if s == "" {
		return fmt.Errorf("address is required")
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	if !ap.Addr().Unmap().Is4() {
		return fmt.Errorf("address %q is not IPv4", s)
	}
	return nil
}

// BindAddr returns the parsed transport.bind address.
func (c *Config) BindAddr() (netip.AddrPort, error) {
	return netip.ParseAddrPort(c.Transport.Bind)
}

// DestinationAddr returns the parsed send.destination address.
func (c *Config) DestinationAddr() (netip.AddrPort, error) {
	return netip.ParseAddrPort(c.Send.Destination)
}

// String returns the YAML representation of the config.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
