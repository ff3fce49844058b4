package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how a Printer writes values.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Printer writes command output in the selected format.
type Printer struct {
	w      io.Writer
	format Format
	styles Styles
}

func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format, styles: DefaultStyles()}
}

func (p *Printer) Format() Format {
	return p.format
}

func (p *Printer) Styles() Styles {
	return p.styles
}

// Print writes v as JSON or YAML, or calls view for table output.
func (p *Printer) Print(v any, view func(Styles) string) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(p.w, view(p.styles))
		return err
	}
}

// Messagef writes a human-readable line. It is suppressed for JSON and YAML
// so machine output stays parseable.
func (p *Printer) Messagef(format string, args ...any) {
	if p.format != FormatTable {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}
