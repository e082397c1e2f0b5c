// Package markdown renders a message body to HTML for the Preview
// operation (spec §6 "Preview: render markdown to HTML"), the idiomatic
// Go equivalent of what go.mau.fi/util's own Matrix-HTML conversion path
// does internally by wrapping goldmark rather than hand-rolling a
// Markdown subset.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var renderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
)

// RenderHTML converts a Markdown message body to sanitized-by-convention
// HTML; callers displaying the result in a client shell are expected to
// apply their own output sanitization the way any renderer handing HTML
// to a host view would.
func RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
