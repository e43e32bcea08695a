package render

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/sprite-ai/relnotes/internal/model"
)

//go:embed templates/release.md.tmpl
var defaultTemplate string

var funcs = template.FuncMap{
	"join":  strings.Join,
	"inc":   func(i int) int { return i + 1 },
	"lower": strings.ToLower,
	"section": func(c ComponentView, opts Options) componentData {
		return componentData{ComponentView: c, Options: opts}
	},
}

// Markdown renders rel with the built-in template or opts.Template.
func Markdown(rel *model.AggregatedRelease, opts Options) (string, error) {
	text := defaultTemplate
	name := "release"
	if opts.Template != "" {
		custom, err := readTemplate(opts.Template)
		if err != nil {
			return "", err
		}
		text, name = custom, opts.Template
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, NewView(rel, opts)); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return b.String(), nil
}

// ComponentMarkdown renders a single component section with the built-in
// template's "component" block.
func ComponentMarkdown(c model.ComponentRelease, opts Options) (string, error) {
	tmpl, err := template.New("release").Funcs(funcs).Parse(defaultTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, "component", componentData{ComponentView: componentView(c, opts), Options: opts}); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return b.String(), nil
}

type componentData struct {
	ComponentView
	Options Options
}
