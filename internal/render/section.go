package render

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/pagesmith/internal/data"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// SectionKind tags the variant held by a Section.
type SectionKind int

const (
	// SectionWidget renders a registered widget: {widget: name, data?: mapping}.
	SectionWidget SectionKind = iota + 1
	// SectionHTML passes literal markup through: {html: string}.
	SectionHTML
	// SectionMarkdown converts markdown: {markdown: string, unsafe?: bool}.
	SectionMarkdown
)

func (k SectionKind) String() string {
	switch k {
	case SectionWidget:
		return "widget"
	case SectionHTML:
		return "html"
	case SectionMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Section is one ordered unit of a page's composed content.
type Section struct {
	Kind SectionKind
	// Widget is the widget name of a SectionWidget.
	Widget string
	// Data overrides the page context for a SectionWidget.
	Data data.Mapping
	// Content is the markup of a SectionHTML or the source of a SectionMarkdown.
	Content string
	// Unsafe skips sanitizing of a SectionMarkdown.
	Unsafe bool
}

// WidgetSection builds a widget section.
func WidgetSection(name string, d data.Mapping) Section {
	return Section{Kind: SectionWidget, Widget: name, Data: d}
}

// HTMLSection builds a literal markup section.
func HTMLSection(content string) Section {
	return Section{Kind: SectionHTML, Content: content}
}

// MarkdownSection builds a markdown section.
func MarkdownSection(src string, unsafe bool) Section {
	return Section{Kind: SectionMarkdown, Content: src, Unsafe: unsafe}
}

// ParseSections converts the decoded content_sections value of a page. The
// variant is chosen by the first key present of widget, html, markdown.
// Entries matching none are dropped with a warning.
func ParseSections(raw any) []Section {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		slog.Warn("content_sections is not a list; ignoring", slog.String("type", fmt.Sprintf("%T", raw)))
		return nil
	}
	sections := make([]Section, 0, len(list))
	for i, item := range list {
		s, ok := parseSection(item)
		if !ok {
			slog.Warn("Ignoring unrecognised content section", slog.Int("index", i))
			continue
		}
		sections = append(sections, s)
	}
	return sections
}

func parseSection(item any) (Section, bool) {
	m, ok := item.(data.Mapping)
	if !ok {
		return Section{}, false
	}
	if name, ok := m["widget"]; ok {
		s := WidgetSection(fmt.Sprint(name), nil)
		switch d := m["data"].(type) {
		case nil:
		case data.Mapping:
			s.Data = d
		default:
			slog.Warn("Widget section data is not a mapping; ignoring it", logfields.Widget(s.Widget))
		}
		return s, true
	}
	if content, ok := m["html"]; ok {
		return HTMLSection(stringValue(content)), true
	}
	if src, ok := m["markdown"]; ok {
		unsafe, _ := m["unsafe"].(bool)
		return MarkdownSection(stringValue(src), unsafe), true
	}
	return Section{}, false
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
