package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown converts markdown to HTML. Inline HTML is kept by goldmark and then
// sanitized with a user-generated-content policy unless the caller opts out.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdown returns a GitHub-flavoured markdown converter.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Convert renders src. When unsafe is false the output is sanitized.
func (m *Markdown) Convert(src string, unsafe bool) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	out := buf.Bytes()
	if !unsafe {
		out = m.policy.SanitizeBytes(out)
	}
	// #nosec G203 -- sanitized above unless the page opted out
	return template.HTML(out), nil
}

// Safe is the markdown template helper; it always sanitizes.
func (m *Markdown) Safe(src string) (template.HTML, error) {
	return m.Convert(src, false)
}
