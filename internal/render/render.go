// Package render turns an aggregated release into markdown, JSON, HTML or
// highlighted terminal text.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sprite-ai/relnotes/internal/model"
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// ParseFormat accepts markdown, md, json, html and text, in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Options controls what a rendered document contains.
type Options struct {
	Format        Format
	IncludePRs    bool
	IncludeIssues bool
	Categorize    bool // group commits by type
	IncludeStats  bool
	// Labels overrides group headings, keyed by commit type ("feat",
	// "other:chore", "other").
	Labels map[string]string
	// LinkBase turns PR and issue numbers into links, e.g.
	// "https://github.com/acme" gives https://github.com/acme/<repo>/pull/12.
	LinkBase string
	// Template is the path of a custom markdown template. Empty uses the
	// built-in one.
	Template string
	// Color enables ANSI highlighting for FormatText.
	Color bool
}

// DefaultOptions mirrors the default feature set of the config file.
func DefaultOptions() Options {
	return Options{
		Format:        FormatMarkdown,
		IncludePRs:    true,
		IncludeIssues: true,
		Categorize:    true,
		IncludeStats:  true,
	}
}

// Render writes rel to w in opts.Format.
func Render(w io.Writer, rel *model.AggregatedRelease, opts Options) error {
	if rel == nil {
		return fmt.Errorf("render: nil release")
	}
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rel)
	case FormatHTML:
		md, err := Markdown(rel, opts)
		if err != nil {
			return err
		}
		return writeHTML(w, rel.Version, md)
	case FormatText:
		md, err := Markdown(rel, opts)
		if err != nil {
			return err
		}
		if !opts.Color {
			_, err = io.WriteString(w, md)
			return err
		}
		_, err = io.WriteString(w, ANSI(Highlight(md)))
		return err
	case FormatMarkdown, "":
		md, err := Markdown(rel, opts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, md)
		return err
	default:
		return fmt.Errorf("render: unknown format %q", opts.Format)
	}
}

// ToString renders into a string.
func ToString(rel *model.AggregatedRelease, opts Options) (string, error) {
	var b strings.Builder
	if err := Render(&b, rel, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

func readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	return string(data), nil
}
