// Package goldmark renders the markdown produced by the pipeline: to
// ANSI-styled text for the terminal UI and to HTML for the browser UI.
package goldmark

import (
	"bytes"
	"html/template"

	"github.com/fwojciec/dataops"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Model output regularly contains result tables, so both renderers parse
// GFM tables. Raw HTML in the source is escaped, never passed through.
var md = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width. Code blocks are
// rendered at full width without reflow.
func Render(source string, width int, theme dataops.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	return newTerminal(theme).render([]byte(source), width)
}

// HTML converts markdown source to an HTML fragment safe to embed in a page.
func HTML(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
