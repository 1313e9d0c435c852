package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/pagesmith/internal/metrics"
)

// ReportSchemaVersion is bumped when the JSON layout changes incompatibly.
const ReportSchemaVersion = 1

// PageResult is the report entry of one page definition file.
type PageResult struct {
	File     string      `json:"file"`
	URL      string      `json:"url,omitempty"`
	Template string      `json:"template,omitempty"`
	Output   string      `json:"output,omitempty"`
	Title    string      `json:"title,omitempty"`
	State    PageState   `json:"state"`
	Failure  FailureKind `json:"failure,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Report summarises one build.
type Report struct {
	SchemaVersion  int                      `json:"schema_version"`
	BuildID        string                   `json:"build_id"`
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	Widgets        int                      `json:"widgets"`
	Written        int                      `json:"written"`
	Skipped        int                      `json:"skipped"`
	Failed         int                      `json:"failed"`
	Pages          []PageResult             `json:"pages"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Outcome        metrics.BuildOutcome     `json:"outcome"`
	Error          string                   `json:"error,omitempty"`
}

func newReport() *Report {
	return &Report{
		SchemaVersion:  ReportSchemaVersion,
		BuildID:        uuid.NewString(),
		Start:          time.Now(),
		Pages:          []PageResult{},
		StageDurations: map[string]time.Duration{},
	}
}

func (r *Report) add(res PageResult) {
	switch res.State {
	case StateWritten:
		r.Written++
	case StateSkipped:
		r.Skipped++
	case StateRenderFailed:
		r.Failed++
	}
	r.Pages = append(r.Pages, res)
}

// finish stamps the end time and derives the outcome from err and the page
// counts.
func (r *Report) finish(err error, canceled bool) {
	r.End = time.Now()
	switch {
	case canceled:
		r.Outcome = metrics.OutcomeCanceled
	case err != nil:
		r.Outcome = metrics.OutcomeFailed
	case r.Failed > 0 || r.Skipped > 0:
		r.Outcome = metrics.OutcomeWarning
	default:
		r.Outcome = metrics.OutcomeSuccess
	}
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s written=%d skipped=%d failed=%d widgets=%d duration=%s outcome=%s",
		r.BuildID, r.Written, r.Skipped, r.Failed, r.Widgets, r.Duration().Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report as indented JSON to path, atomically.
func (r *Report) Persist(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}
	tmp := path + ".tmp"
	// #nosec G306 -- report is not secret
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report json: %w", err)
	}
	return nil
}

// pageTitle returns the text of the first <title> element of an HTML
// document, or "" if there is none.
func pageTitle(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.TrimSpace(b.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(root)
}
