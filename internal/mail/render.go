package mail

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	htmlPolicy  = bluemonday.UGCPolicy()
	textPolicy  = bluemonday.StrictPolicy()
	blockBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6]|blockquote)>`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// RenderHTML renders a plain-text notification body as sanitized HTML.
// Raw HTML in the input is dropped.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return htmlPolicy.Sanitize(buf.String()), nil
}

// HTMLToText strips an HTML email body down to readable text.
func HTMLToText(body string) string {
	withBreaks := blockBreaks.ReplaceAllString(body, "$0\n")
	stripped := html.UnescapeString(textPolicy.Sanitize(withBreaks))
	lines := strings.Split(strings.ReplaceAll(stripped, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
