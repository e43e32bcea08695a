package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Release %s</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; max-width: 900px; margin: 0 auto; padding: 20px; color: #24292f; }
  h1, h2, h3 { border-bottom: 1px solid #e1e4e8; padding-bottom: 0.3em; }
  code { background: #f6f8fa; padding: 2px 4px; border-radius: 3px; font-family: ui-monospace, SFMono-Regular, Menlo, monospace; }
  hr { border: 0; border-top: 1px solid #e1e4e8; }
  a { color: #0969da; }
</style>
</head>
<body>
`

const pageTail = `</body>
</html>
`

// HTML converts markdown to an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

func writeHTML(w io.Writer, version, markdown string) error {
	body, err := HTML(markdown)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, pageHead, html.EscapeString(version)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	_, err = io.WriteString(w, pageTail)
	return err
}
