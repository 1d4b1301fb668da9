// Package wizard provides an interactive setup wizard for rawudp.
package wizard

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/postalsys/rawudp/internal/config"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string
}

// answers collects every form value before the config is built.
type answers struct {
	configPath     string
	bind           string
	destination    string
	rate           string
	listenFormat   string
	filterPort     bool
	verifyChecksum bool
	logLevel       string
	healthEnabled  bool
	healthAddress  string
}

func defaultAnswers() answers {
	d := config.Default()
	return answers{
		configPath:    "./rawudp.yaml",
		bind:          d.Transport.Bind,
		destination:   d.Send.Destination,
		rate:          "0",
		listenFormat:  d.Listen.Format,
		filterPort:    d.Listen.FilterPort,
		logLevel:      d.Log.Level,
		healthAddress: d.Health.Address,
	}
}

// Wizard manages the interactive setup process.
type Wizard struct {
	theme *huh.Theme
}

// New creates a new setup wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
	}
}

// Run executes the interactive setup wizard and writes the config file.
func (w *Wizard) Run() (*Result, error) {
	w.printBanner()

	a := defaultAnswers()

	if err := w.askTransport(&a); err != nil {
		return nil, err
	}
	if err := w.askModes(&a); err != nil {
		return nil, err
	}
	if err := w.askAdvancedOptions(&a); err != nil {
		return nil, err
	}

	cfg, err := buildConfig(a)
	if err != nil {
		return nil, err
	}

	if err := writeConfig(cfg, a.configPath); err != nil {
		return nil, err
	}

	w.printSummary(a.configPath, cfg)

	return &Result{Config: cfg, ConfigPath: a.configPath}, nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
  _ __ __ ___      __  _   _  __| |_ __
 | '__/ _' \ \ /\ / / | | | |/ _' | '_ \
 | | | (_| |\ V  V /  | |_| | (_| | |_) |
 |_|  \__,_| \_/\_/    \__,_|\__,_| .__/
                                  |_|
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  Raw socket UDP tool - Setup Wizard\n")

	fmt.Println(banner)
	fmt.Println(subtitle)
}

func (w *Wizard) askTransport(a *answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Transport").
				Description("Raw sockets need root or CAP_NET_RAW."),

			huh.NewInput().
				Title("Config File Path").
				Description("Where to write the configuration file").
				Placeholder("./rawudp.yaml").
				Value(&a.configPath).
				Validate(validateConfigPath),

			huh.NewInput().
				Title("Bind Address").
				Description("Local IPv4 address and port (e.g., 127.0.0.1:9001)").
				Placeholder("127.0.0.1:9001").
				Value(&a.bind).
				Validate(validateAddr),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askModes(a *answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Send and Listen").
				Description("Defaults for the send and listen commands."),

			huh.NewInput().
				Title("Destination").
				Description("Where send delivers datagrams").
				Placeholder("127.0.0.1:9002").
				Value(&a.destination).
				Validate(validateAddr),

			huh.NewInput().
				Title("Send Rate").
				Description("Datagrams per second, 0 for unlimited").
				Value(&a.rate).
				Validate(validateRate),

			huh.NewSelect[string]().
				Title("Listen Output Format").
				Options(
					huh.NewOption("Text (sanitised payload)", "text"),
					huh.NewOption("Hex dump", "hex"),
					huh.NewOption("JSON lines", "json"),
				).
				Value(&a.listenFormat),

			huh.NewConfirm().
				Title("Only show datagrams for the bound port?").
				Description("Raw sockets see all UDP traffic to the address").
				Value(&a.filterPort),
		),
	).WithTheme(w.theme)

	return form.Run()
}

func (w *Wizard) askAdvancedOptions(a *answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Advanced Options"),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("Debug (verbose)", "debug"),
					huh.NewOption("Info (recommended)", "info"),
					huh.NewOption("Warning", "warn"),
					huh.NewOption("Error (quiet)", "error"),
				).
				Value(&a.logLevel),

			huh.NewConfirm().
				Title("Verify checksums on receive?").
				Description("Drop datagrams whose checksum does not match").
				Value(&a.verifyChecksum),

			huh.NewConfirm().
				Title("Enable health check endpoint?").
				Description("HTTP endpoint for monitoring (/health, /healthz, /metrics)").
				Value(&a.healthEnabled),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return err
	}
	if !a.healthEnabled {
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Health Address").
				Placeholder("127.0.0.1:8080").
				Value(&a.healthAddress).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}),
		),
	).WithTheme(w.theme).Run()
}

func buildConfig(a answers) (*config.Config, error) {
	cfg := config.Default()

	cfg.Log.Level = a.logLevel
	cfg.Log.Format = "text"

	cfg.Transport.Bind = strings.TrimSpace(a.bind)
	cfg.Transport.VerifyChecksum = a.verifyChecksum

	cfg.Send.Destination = strings.TrimSpace(a.destination)
	rate, err := parseRate(a.rate)
	if err != nil {
		return nil, err
	}
	cfg.Send.Rate = rate

	cfg.Listen.Format = a.listenFormat
	cfg.Listen.FilterPort = a.filterPort

	cfg.Health.Enabled = a.healthEnabled
	if a.healthEnabled {
		cfg.Health.Address = a.healthAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# rawudp configuration
# Generated by setup wizard

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (w *Wizard) printSummary(configPath string, cfg *config.Config) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(strings.Repeat("─", 49))

	fmt.Println()
	fmt.Println(divider)
	fmt.Println(style.Render("✓ Setup Complete!"))
	fmt.Println(divider)
	fmt.Println()

	fmt.Printf("  Config file:  %s\n", configPath)
	fmt.Printf("  Bind:         %s\n", cfg.Transport.Bind)
	fmt.Printf("  Destination:  %s\n", cfg.Send.Destination)
	if cfg.Health.Enabled {
		fmt.Printf("  Health:       http://%s/health\n", cfg.Health.Address)
	}

	fmt.Println()
	fmt.Println("  To start:")
	fmt.Printf("    sudo rawudp listen -c %s\n", configPath)
	fmt.Printf("    sudo rawudp send -c %s\n", configPath)
	fmt.Println()
}

func validateConfigPath(s string) error {
	if s == "" {
		return fmt.Errorf("config path is required")
	}
	if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
		return fmt.Errorf("config file should have .yaml or .yml extension")
	}
	return nil
}

func validateAddr(s string) error {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid address format (expected ip:port)")
	}
	if !ap.Addr().Unmap().Is4() {
		return fmt.Errorf("only IPv4 addresses are supported")
	}
	return nil
}

func validateRate(s string) error {
	_, err := parseRate(s)
	return err
}

func parseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("rate must be a number")
	}
	if r < 0 {
		return 0, fmt.Errorf("rate must not be negative")
	}
	return r, nil
}
