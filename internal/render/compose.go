package render

import (
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/data"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// ComposeSections renders sections in order and concatenates the results.
//
// A widget section renders with ctx overridden by the section's data; a widget
// that is not registered contributes nothing. HTML sections are copied
// unchanged. The first widget or markdown error stops composition.
func ComposeSections(env *Environment, sections []Section, ctx data.Mapping) (template.HTML, error) {
	var b strings.Builder
	for i, s := range sections {
		switch s.Kind {
		case SectionWidget:
			if !env.HasWidget(s.Widget) {
				slog.Debug("Skipping unknown widget", logfields.Widget(s.Widget))
				continue
			}
			out, err := env.RenderWidget(s.Widget, data.Merge(ctx, s.Data))
			if err != nil {
				return "", fmt.Errorf("section %d: widget %q: %w", i, s.Widget, err)
			}
			b.WriteString(string(out))
		case SectionHTML:
			b.WriteString(s.Content)
		case SectionMarkdown:
			out, err := env.Markdown().Convert(s.Content, s.Unsafe)
			if err != nil {
				return "", fmt.Errorf("section %d: %w", i, err)
			}
			b.WriteString(string(out))
		}
	}
	// #nosec G203 -- html sections are trusted site content
	return template.HTML(b.String()), nil
}
