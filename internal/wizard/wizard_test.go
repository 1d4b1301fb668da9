package wizard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/postalsys/rawudp/internal/config"
)

func TestNew(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.theme == nil {
		t.Error("New() returned wizard without a theme")
	}
}

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"127.0.0.1:9001", false},
		{" 10.0.0.1:53 ", false},
		{"[::ffff:127.0.0.1]:9001", false},
		{"127.0.0.1", true},
		{"localhost:9001", true},
		{"[::1]:9001", true},
		{"", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			err := validateAddr(tc.input)
			if (err != nil) != tc.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"./rawudp.yaml", false},
		{"/etc/rawudp/config.yml", false},
		{"", true},
		{"config.json", true},
	}

	for _, tc := range tests {
		if err := validateConfigPath(tc.input); (err != nil) != tc.wantErr {
			t.Errorf("validateConfigPath(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
		}
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"12.5", 12.5, false},
		{" 100 ", 100, false},
		{"-1", 0, true},
		{"fast", 0, true},
	}

	for _, tc := range tests {
		got, err := parseRate(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseRate(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("parseRate(%q) = %v, want %v", tc.input, got, tc.want)
		}
		if (validateRate(tc.input) != nil) != tc.wantErr {
			t.Errorf("validateRate(%q) disagrees with parseRate", tc.input)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	a := defaultAnswers()
	a.bind = "10.0.0.5:4000"
	a.destination = " 10.0.0.6:4001 "
	a.rate = "25"
	a.listenFormat = "json"
	a.filterPort = false
	a.verifyChecksum = true
	a.logLevel = "debug"
	a.healthEnabled = true
	a.healthAddress = ":9100"

	cfg, err := buildConfig(a)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.Transport.Bind != "10.0.0.5:4000" {
		t.Errorf("Transport.Bind = %s", cfg.Transport.Bind)
	}
	if !cfg.Transport.VerifyChecksum {
		t.Error("Transport.VerifyChecksum should be true")
	}
	if cfg.Send.Destination != "10.0.0.6:4001" {
		t.Errorf("Send.Destination = %q, want trimmed", cfg.Send.Destination)
	}
	if cfg.Send.Rate != 25 {
		t.Errorf("Send.Rate = %v, want 25", cfg.Send.Rate)
	}
	if cfg.Listen.Format != "json" || cfg.Listen.FilterPort {
		t.Errorf("Listen = %+v", cfg.Listen)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Health.Enabled || cfg.Health.Address != ":9100" {
		t.Errorf("Health = %+v", cfg.Health)
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg, err := buildConfig(defaultAnswers())
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	d := config.Default()
	if cfg.Transport.Bind != d.Transport.Bind {
		t.Errorf("Transport.Bind = %s, want %s", cfg.Transport.Bind, d.Transport.Bind)
	}
	if cfg.Health.Enabled {
		t.Error("Health should be disabled by default")
	}
	if cfg.Health.Address != d.Health.Address {
		t.Errorf("Health.Address = %s, want default %s", cfg.Health.Address, d.Health.Address)
	}
}

func TestBuildConfigInvalid(t *testing.T) {
	a := defaultAnswers()
	a.rate = "-3"
	if _, err := buildConfig(a); err == nil {
		t.Error("buildConfig() should reject a negative rate")
	}

	a = defaultAnswers()
	a.bind = "[::1]:9001"
	if _, err := buildConfig(a); err == nil {
		t.Error("buildConfig() should reject an IPv6 bind")
	}
}

func TestWriteConfig(t *testing.T) {
	cfg, err := buildConfig(defaultAnswers())
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "rawudp.yaml")
	if err := writeConfig(cfg, path); err != nil {
		t.Fatalf("writeConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# rawudp configuration") {
		t.Errorf("config file missing header:\n%s", data)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if loaded.Transport.Bind != cfg.Transport.Bind {
		t.Errorf("loaded Transport.Bind = %s, want %s", loaded.Transport.Bind, cfg.Transport.Bind)
	}
	if loaded.Transport.ReceiveTimeout != cfg.Transport.ReceiveTimeout {
		t.Errorf("loaded ReceiveTimeout = %v, want %v", loaded.Transport.ReceiveTimeout, cfg.Transport.ReceiveTimeout)
	}
}

func TestWriteConfigCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "rawudp.yaml")
	if err := writeConfig(config.Default(), path); err != nil {
		t.Fatalf("writeConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}
