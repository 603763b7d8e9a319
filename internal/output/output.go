// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. Unknown values fall back to table.
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

// NewPrinter creates a printer writing to w.
func NewPrinter(format Format, w io.Writer) *Printer {
	return &Printer{
		format:  format,
		writer:  w,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetNoColor disables ANSI colors.
func (p *Printer) SetNoColor(v bool) {
	p.noColor = v
}

// Print outputs data as JSON or YAML; table output falls back to JSON.
func (p *Printer) Print(data any) error {
	if p.format == FormatYAML {
		enc := yaml.NewEncoder(p.writer)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	}
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

func (p *Printer) tableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// Module states reported by ModuleRow.Status.
const (
	StatusFresh    = "fresh"
	StatusStale    = "stale"
	StatusMissing  = "not compiled"
	StatusUnknown  = "unknown"
)

// ModuleRow is one function in list output.
type ModuleRow struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
	Output string `json:"output" yaml:"output"`
	Status string `json:"status" yaml:"status"`
}

// PrintModules prints discovered functions.
func (p *Printer) PrintModules(rows []ModuleRow) error {
	if p.format != FormatTable {
		return p.Print(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No functions found")
		return nil
	}

	w := p.tableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "NAME\tSOURCE\tOUTPUT\tSTATUS"))
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Colorize(Cyan, row.Name), row.Source, row.Output, p.statusColor(row.Status))
	}
	return w.Flush()
}

func (p *Printer) statusColor(status string) string {
	switch status {
	case StatusFresh:
		return p.Colorize(Green, status)
	case StatusStale:
		return p.Colorize(Yellow, status)
	case StatusMissing:
		return p.Colorize(Gray, status)
	default:
		return status
	}
}

// InvokeResult is the outcome of a one-off invocation.
type InvokeResult struct {
	Function   string              `json:"function" yaml:"function"`
	StatusCode int                 `json:"status_code" yaml:"status_code"`
	Headers    map[string][]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string              `json:"body" yaml:"body"`
	DurationMs int64               `json:"duration_ms" yaml:"duration_ms"`
}

// PrintInvokeResult prints an invocation result. The table form looks like
// an HTTP response.
func (p *Printer) PrintInvokeResult(result InvokeResult) error {
	if p.format != FormatTable {
		return p.Print(result)
	}

	statusColor := Green
	if result.StatusCode >= 400 {
		statusColor = Red
	}
	fmt.Fprintf(p.writer, "%s %s\n",
		p.Colorize(statusColor, fmt.Sprintf("%d", result.StatusCode)),
		p.Colorize(Gray, fmt.Sprintf("(%dms)", result.DurationMs)))

	names := make([]string, 0, len(result.Headers))
	for k := range result.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		for _, v := range result.Headers[k] {
			fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, k+":"), v)
		}
	}
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, result.Body)
	return nil
}
