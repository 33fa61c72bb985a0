package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: color.NoColor,
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// SetNoColor disables ANSI colors.
func (p *Printer) SetNoColor(v bool) {
	p.noColor = v
}

// Print outputs data in the configured format
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data any) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// Colorize adds color to text
func (p *Printer) Colorize(attr color.Attribute, text string) string {
	if p.noColor {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// StatusRow is one entity store in status output.
type StatusRow struct {
	Domain      string `json:"domain" yaml:"domain"`
	Status      string `json:"status" yaml:"status"`
	FetchedOnce bool   `json:"fetchedOnce" yaml:"fetchedOnce"`
	Loading     bool   `json:"loading" yaml:"loading"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PrintStatuses prints store lifecycle rows
func (p *Printer) PrintStatuses(rows []StatusRow) error {
	if p.format != FormatTable {
		return p.Print(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No stores registered")
		return nil
	}

	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(color.Bold, "DOMAIN\tSTATUS\tFETCHED\tERROR"))
	for _, row := range rows {
		errText := "-"
		if row.Error != "" {
			errText = row.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
			p.Colorize(color.FgCyan, row.Domain),
			p.colorStatus(row.Status),
			row.FetchedOnce,
			errText,
		)
	}
	return w.Flush()
}

func (p *Printer) colorStatus(status string) string {
	switch status {
	case "ready":
		return p.Colorize(color.FgGreen, status)
	case "failed":
		return p.Colorize(color.FgRed, status)
	case "loading":
		return p.Colorize(color.FgYellow, status)
	default:
		return p.Colorize(color.FgHiBlack, status)
	}
}

// PrintDocument prints a raw JSON document. Table format falls back to
// indented JSON.
func (p *Printer) PrintDocument(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return p.Print(v)
}

// PrintKeyValues prints name/value pairs in a two-column table.
func (p *Printer) PrintKeyValues(data any, pairs [][2]string) error {
	if p.format != FormatTable {
		return p.Print(data)
	}
	w := p.TableWriter()
	for _, kv := range pairs {
		fmt.Fprintf(w, "%s\t%s\n", p.Colorize(color.Bold, kv[0]), kv[1])
	}
	return w.Flush()
}

// Success prints a success message
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.writer, p.Colorize(color.FgGreen, "✓ ")+format+"\n", args...)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintf(p.writer, p.Colorize(color.FgYellow, "! ")+format+"\n", args...)
}
