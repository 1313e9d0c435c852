package pipeline

import (
	"fmt"

	"git.home.luguber.info/inful/pagesmith/internal/data"
)

// Reserved page keys.
const (
	KeyURL             = "url"
	KeyTemplate        = "template"
	KeyContentSections = "content_sections"
	KeySectionsContent = "sections_content"
	KeyPagesPath       = "pages_path"
)

// PageState tracks a page through one build.
type PageState string

const (
	StateParsed       PageState = "parsed"
	StateValidated    PageState = "validated"
	StateContextBuilt PageState = "context_built"
	StateRendered     PageState = "rendered"
	StateRenderFailed PageState = "render_failed"
	StateWritten      PageState = "written"
	StateSkipped      PageState = "skipped"
)

// Page is one page definition file and its parsed data.
type Page struct {
	// File is the path of the definition file.
	File string
	// URL is the page's unique address; empty when the file has none.
	URL string
	// Template names the page template without suffix; empty when absent.
	Template string
	// Output is the file the page renders to; set once the page is validated.
	Output string
	// Data is the whole parsed definition, reserved keys included.
	Data  data.Mapping
	State PageState
}

// NewPage wraps parsed page data. Scalar url and template values are
// stringified; a null value counts as absent.
func NewPage(file string, m data.Mapping) *Page {
	if m == nil {
		m = data.Mapping{}
	}
	return &Page{
		File:     file,
		URL:      scalar(m[KeyURL]),
		Template: scalar(m[KeyTemplate]),
		Data:     m,
		State:    StateParsed,
	}
}

// HasSections reports whether the page declares content sections.
func (p *Page) HasSections() bool {
	_, ok := p.Data[KeyContentSections]
	return ok
}

func scalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
