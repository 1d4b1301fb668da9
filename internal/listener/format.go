package listener

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/postalsys/rawudp/internal/udp"
)

// Output formats.
const (
	FormatText = "text"
	FormatHex  = "hex"
	FormatJSON = "json"
)

var (
	addrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	payloadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// Formatter writes one received datagram.
type Formatter interface {
	Format(w io.Writer, pkt *udp.Packet, from netip.AddrPort) error
}

// NewFormatter returns the formatter for name. Color applies to the text
// format only.
func NewFormatter(name string, color bool) (Formatter, error) {
	switch name {
	case FormatText, "":
		return textFormatter{color: color}, nil
	case FormatHex:
		return hexFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (must be text, hex, or json)", name)
	}
}

// Sanitize makes payload text safe for a terminal: ill-formed UTF-8 becomes
// U+FFFD and control characters other than tab are dropped.
func Sanitize(s string) string {
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsControl(r) && r != '\t'
		})),
	)
	out, _, _ := transform.String(t, s)
	return out
}

type textFormatter struct {
	color bool
}

func (f textFormatter) Format(w io.Writer, pkt *udp.Packet, from netip.AddrPort) error {
	h := pkt.Header()
	addr := from.String()
	meta := fmt.Sprintf("-> :%d  %s  checksum 0x%04x",
		h.DestinationPort(), humanize.IBytes(uint64(h.Length())), h.Checksum())
	payload := Sanitize(pkt.Text())

	if f.color {
		addr = addrStyle.Render(addr)
		meta = metaStyle.Render(meta)
		payload = payloadStyle.Render(payload)
	}

	_, err := fmt.Fprintf(w, "%s %s  %s\n", addr, meta, payload)
	return err
}

type hexFormatter struct{}

func (hexFormatter) Format(w io.Writer, pkt *udp.Packet, from netip.AddrPort) error {
	h := pkt.Header()
	if _, err := fmt.Fprintf(w, "%s -> :%d (%d bytes)\n", from, h.DestinationPort(), h.Length()); err != nil {
		return err
	}
	_, err := io.WriteString(w, hex.Dump(pkt.Encode()))
	return err
}

// jsonRecord is one line of json output.
type jsonRecord struct {
	Time            time.Time `json:"time"`
	From            string    `json:"from"`
	SourcePort      uint16    `json:"source_port"`
	DestinationPort uint16    `json:"destination_port"`
	Length          uint16    `json:"length"`
	Checksum        string    `json:"checksum"`
	Payload         string    `json:"payload"`
	PayloadHex      string    `json:"payload_hex"`
}

type jsonFormatter struct {
	now func() time.Time
}

func (f jsonFormatter) Format(w io.Writer, pkt *udp.Packet, from netip.AddrPort) error {
	h := pkt.Header()
	return json.NewEncoder(w).Encode(jsonRecord{
		Time:            f.now().UTC(),
		From:            from.String(),
		SourcePort:      h.SourcePort(),
		DestinationPort: h.DestinationPort(),
		Length:          h.Length(),
		Checksum:        fmt.Sprintf("0x%04x", h.Checksum()),
		Payload:         pkt.Text(),
		PayloadHex:      hex.EncodeToString(pkt.Payload()),
	})
}
