package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/relnotes/internal/model"
	"github.com/sprite-ai/relnotes/internal/render"
)

// renderedLine is a single line of the detail pane ready for display.
type renderedLine struct {
	Content string // plain text
	Tokens  []render.Token
	Heading bool // a section heading, used for jumping
}

// renderComponent produces the detail lines for one component.
func renderComponent(c model.ComponentRelease, opts render.Options) []renderedLine {
	md, err := render.ComponentMarkdown(c, opts)
	if err != nil {
		return []renderedLine{{Content: "render error: " + err.Error()}}
	}

	hl := render.Highlight(md)
	lines := make([]renderedLine, 0, len(hl))
	for _, h := range hl {
		plain := h.Plain()
		lines = append(lines, renderedLine{
			Content: plain,
			Tokens:  h.Tokens,
			Heading: strings.HasPrefix(plain, "#"),
		})
	}
	return lines
}

func renderHighlightedContent(rl renderedLine) string {
	if len(rl.Tokens) == 0 {
		return rl.Content
	}

	var b strings.Builder
	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// styleLine applies highlighting to a line, truncating it to width.
func styleLine(rl renderedLine, width int) string {
	if width > 0 && lipgloss.Width(rl.Content) > width {
		return truncate(rl.Content, width)
	}
	return renderHighlightedContent(rl)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
