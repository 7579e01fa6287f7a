// Package presentation renders command output for humans and scripts.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
	}
}

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format Format
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer, format Format) *Formatter {
	return &Formatter{
		writer: writer,
		format: format,
	}
}

// FormatLanguages writes a language listing.
func (f *Formatter) FormatLanguages(list LanguageListDTO) error {
	switch f.format {
	case FormatJSON:
		return f.json(list)
	case FormatYAML:
		return f.yaml(list)
	default:
		return f.languagesText(list)
	}
}

func (f *Formatter) json(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) yaml(v any) error {
	encoder := yaml.NewEncoder(f.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func (f *Formatter) languagesText(list LanguageListDTO) error {
	tw := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tALIASES\tFILENAMES")
	for _, l := range list.Languages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Name, strings.Join(l.Aliases, ", "), strings.Join(l.Filenames, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(list.Aliases) == 0 {
		return nil
	}
	fmt.Fprintln(f.writer)
	tw = tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLAG\tLANGUAGE")
	for _, a := range list.Aliases {
		fmt.Fprintf(tw, "%s\t%s\n", a.Flag, a.Language)
	}
	return tw.Flush()
}
