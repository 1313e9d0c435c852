package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/render"
)

// site is a throwaway project tree with the default src/ layout.
type site struct {
	t    *testing.T
	root string
}

func newSite(t *testing.T) *site {
	t.Helper()
	return &site{t: t, root: t.TempDir()}
}

func (s *site) path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *site) write(rel, content string) {
	s.t.Helper()
	p := s.path(rel)
	require.NoError(s.t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(s.t, os.WriteFile(p, []byte(content), 0o600))
}

func (s *site) config(extra string) *config.Config {
	s.t.Helper()
	doc := fmt.Sprintf(`config_path: %s
widgets_path: %s
templates_path: %s
export_path: %s
pages_path:
  - %s
%s`, s.path("src/config"), s.path("src/widgets"), s.path("src/templates"), s.path("dist"), s.path("src/pages"), extra)
	cfg, err := config.Parse([]byte(doc))
	require.NoError(s.t, err)
	return cfg
}

func (s *site) output(url string) string {
	s.t.Helper()
	p, err := OutputPath(s.path("dist"), url)
	require.NoError(s.t, err)
	return p
}

func (s *site) read(url string) string {
	s.t.Helper()
	b, err := os.ReadFile(s.output(url))
	require.NoError(s.t, err)
	return string(b)
}

func (s *site) run(cfg *config.Config, opts ...Option) (*Report, error) {
	s.t.Helper()
	return New(cfg, opts...).Run(context.Background())
}

func TestEndToEndSinglePage(t *testing.T) {
	s := newSite(t)
	s.write("src/config/site.yml", "title: Site\n")
	s.write("src/templates/home.html", "<h1>{{ .title }}</h1>")
	s.write("src/pages/index.yml", "url: /\ntemplate: home\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, "<h1>Site</h1>", s.read("/"))
	require.Equal(t, 1, report.Written)
	require.Equal(t, metrics.OutcomeSuccess, report.Outcome)
	require.NotEmpty(t, report.BuildID)
}

func TestMergePrecedence(t *testing.T) {
	s := newSite(t)
	s.write("src/config/a.yml", "title: Data\ncolor: red\nfooter: first\n")
	s.write("src/config/b.yml", "footer: second\n")
	s.write("src/templates/t.html", "{{ .title }}|{{ .color }}|{{ .footer }}")
	s.write("src/pages/one.yml", "url: /one\ntemplate: t\n")
	s.write("src/pages/two.yml", "url: /two\ntemplate: t\ntitle: Page\n")

	_, err := s.run(s.config("title: Config\n"))
	require.NoError(t, err)
	require.Equal(t, "Config|red|second", s.read("/one"))
	require.Equal(t, "Page|red|second", s.read("/two"))
}

func TestDuplicateURLAbortsBeforeWriting(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "{{ .name }}")
	s.write("src/pages/a.yml", "url: /about\ntemplate: t\nname: a\n")
	s.write("src/pages/b.yml", "url: /about\ntemplate: t\nname: b\n")

	report, err := s.run(s.config(""))
	require.Error(t, err)
	require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryValidation))
	require.True(t, siteerrors.IsFatal(err))
	require.Contains(t, err.Error(), "/about")
	require.Contains(t, err.Error(), "b.yml")
	require.NoFileExists(t, s.output("/about"))
	require.Equal(t, metrics.OutcomeFailed, report.Outcome)
	require.Equal(t, err.Error(), report.Error)
}

func TestDuplicateURLAcrossDirectories(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/a.yml", "url: /same\ntemplate: t\n")
	s.write("src/more/a.yml", "url: /same\ntemplate: t\n")

	cfg := s.config("")
	cfg.Raw["pages_path"] = []any{s.path("src/pages"), s.path("src/more")}

	_, err := s.run(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), filepath.Join("src", "more", "a.yml"))
}

func TestURLsSharingAnOutputFileAreDuplicates(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "{{ .name }}")
	s.write("src/pages/a.yml", "url: /about\ntemplate: t\nname: first\n")
	s.write("src/pages/b.yml", "url: /about/\ntemplate: t\nname: second\n")
	s.write("src/pages/c.yml", "url: //about\ntemplate: t\nname: third\n")

	report, err := s.run(s.config(""))
	require.Error(t, err)
	require.True(t, siteerrors.IsFatal(err))
	require.Contains(t, err.Error(), `"/about/"`)
	require.Contains(t, err.Error(), `same output as "/about"`)
	require.Contains(t, err.Error(), "b.yml")
	require.NoFileExists(t, s.output("/about"))
	require.Zero(t, report.Written)
}

func TestRootURLSpellingsAreDuplicates(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/a.yml", "url: /\ntemplate: t\n")
	s.write("src/pages/b.yml", "url: //\ntemplate: t\n")

	_, err := s.run(s.config(""))
	require.Error(t, err)
	require.NoFileExists(t, s.output("/"))
}

func TestMissingURLIsSkipped(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "ok")
	s.write("src/pages/draft.yml", "template: t\n")
	s.write("src/pages/live.yml", "url: /live\ntemplate: t\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, "ok", s.read("/live"))
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 1, report.Written)
	require.Equal(t, metrics.OutcomeWarning, report.Outcome)

	require.Equal(t, StateSkipped, report.Pages[0].State)
	require.Equal(t, FailMissingURL, report.Pages[0].Failure)
}

func TestMissingTemplateAbortsBeforeWriting(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "ok")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")
	s.write("src/pages/b.yml", "url: /b\n")

	_, err := s.run(s.config(""))
	require.Error(t, err)
	require.True(t, siteerrors.IsFatal(err))
	require.Contains(t, err.Error(), "b.yml")
	require.NoFileExists(t, s.output("/a"))
	require.NoFileExists(t, s.output("/b"))
}

func TestRenderFailureIsIsolated(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/bad.html", "{{ int .count }}")
	s.write("src/templates/good.html", "fine")
	s.write("src/pages/a.yml", "url: /a\ntemplate: bad\ncount: many\n")
	s.write("src/pages/b.yml", "url: /b\ntemplate: missing\n")
	s.write("src/pages/c.yml", "url: /c\ntemplate: good\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.NoFileExists(t, s.output("/a"))
	require.NoFileExists(t, s.output("/b"))
	require.Equal(t, "fine", s.read("/c"))
	require.Equal(t, 2, report.Failed)
	require.Equal(t, 1, report.Written)

	for _, res := range report.Pages[:2] {
		require.Equal(t, StateRenderFailed, res.State)
		require.Equal(t, FailRender, res.Failure)
		require.NotEmpty(t, res.Error)
	}

	entries, err := os.ReadDir(s.path("dist"))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}

func TestContentSections(t *testing.T) {
	s := newSite(t)
	s.write("src/widgets/card.html", "<div>{{ .heading }} {{ .site }}</div>")
	s.write("src/templates/page.html", "<main>{{ .sections_content }}</main>")
	s.write("src/config/site.yml", "site: Example\n")
	s.write("src/pages/index.yml", `url: /
template: page
content_sections:
  - html: "<p>intro</p>"
  - widget: card
    data:
      heading: Hello
  - widget: ghost
  - markdown: "**bold**"
`)

	_, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, "<main><p>intro</p><div>Hello Example</div><p><strong>bold</strong></p>\n</main>", s.read("/"))
}

func TestWidgetFailureInSectionIsPageFailure(t *testing.T) {
	s := newSite(t)
	s.write("src/widgets/num.html", "{{ int .n }}")
	s.write("src/templates/page.html", "{{ .sections_content }}")
	s.write("src/pages/a.yml", "url: /a\ntemplate: page\ncontent_sections:\n  - widget: num\n    data:\n      n: lots\n")
	s.write("src/pages/b.yml", "url: /b\ntemplate: page\ncontent_sections:\n  - widget: num\n    data:\n      n: 4\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.NoFileExists(t, s.output("/a"))
	require.Equal(t, "4", s.read("/b"))
	require.Equal(t, 1, report.Failed)
}

func TestWidgetCompileFailureAborts(t *testing.T) {
	s := newSite(t)
	s.write("src/widgets/broken.html", "{{ .x ")
	s.write("src/templates/t.html", "ok")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")

	_, err := s.run(s.config(""))
	require.Error(t, err)
	require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryWidget))
	se, ok := siteerrors.As(err)
	require.True(t, ok)
	require.Equal(t, "broken", se.Context["widget"])
	require.NoFileExists(t, s.output("/a"))
}

func TestWidgetsCallableFromTemplates(t *testing.T) {
	s := newSite(t)
	s.write("src/widgets/nav.html", "<nav>{{ .site }}</nav>")
	s.write("src/templates/t.html", `{{ widget "nav" . }}{{ template "nav" . }}`)
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\nsite: S\n")

	_, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, "<nav>S</nav><nav>S</nav>", s.read("/a"))
}

func TestOutputPathEscapeIsPageFailure(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/a.yml", "url: /../../evil\ntemplate: t\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, FailOutputPath, report.Pages[0].Failure)
	require.NoFileExists(t, filepath.Join(s.root, "..", "evil", IndexFile))
}

func TestScalarURLAndNestedOutput(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "{{ .url }}")
	s.write("src/pages/a.yml", "url: 404\ntemplate: t\n")
	s.write("src/pages/b.yml", "url: /blog/post/\ntemplate: t\n")

	_, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, "404", s.read("404"))
	require.FileExists(t, s.path("dist/blog/post/index.html"))
}

func TestNoPagesPath(t *testing.T) {
	s := newSite(t)
	cfg := s.config("")
	delete(cfg.Raw, "pages_path")

	report, err := s.run(cfg)
	require.NoError(t, err)
	require.Equal(t, 0, report.Written)
	require.Equal(t, metrics.OutcomeSuccess, report.Outcome)
}

func TestUnparseablePageFileIsSkipped(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/broken.yml", "url: [unclosed\n")

	report, err := s.run(s.config(""))
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
}

func TestCancellation(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(s.config("")).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryRuntime))
	require.Equal(t, metrics.OutcomeCanceled, report.Outcome)
	require.NoFileExists(t, s.output("/a"))
}

func TestCleanExport(t *testing.T) {
	s := newSite(t)
	s.write("dist/stale/index.html", "old")
	s.write("src/templates/t.html", "new")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")

	_, err := s.run(s.config("clean_export: true\n"))
	require.NoError(t, err)
	require.NoFileExists(t, s.path("dist/stale/index.html"))
	require.Equal(t, "new", s.read("/a"))
}

func TestReportPersisted(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "<html><head><title> {{ .title }} </title></head><body></body></html>")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\ntitle: About us\n")

	reportPath := s.path("out/report.json")
	_, err := s.run(s.config(""), WithReportPath(reportPath))
	require.NoError(t, err)

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, ReportSchemaVersion, got.SchemaVersion)
	require.Len(t, got.Pages, 1)
	require.Equal(t, "About us", got.Pages[0].Title)
	require.Equal(t, StateWritten, got.Pages[0].State)
	require.Contains(t, got.StageDurations, StageRender)
}

func TestCustomHelpers(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", `{{ upper "x" }}`)
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")

	_, err := s.run(s.config(""), WithHelpers([]render.Helper{
		{Name: "upper", Func: func(string) string { return "X" }},
	}))
	require.NoError(t, err)
	require.Equal(t, "X", s.read("/a"))
}

type countingRecorder struct {
	metrics.NoopRecorder
	pages    map[metrics.PageResult]int
	outcomes []metrics.BuildOutcome
	stages   []string
}

func (c *countingRecorder) IncPageResult(r metrics.PageResult) { c.pages[r]++ }

func (c *countingRecorder) IncBuildOutcome(o metrics.BuildOutcome) {
	c.outcomes = append(c.outcomes, o)
}

func (c *countingRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	c.stages = append(c.stages, stage)
}

func TestRecorderReceivesResults(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "x")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")
	s.write("src/pages/b.yml", "template: t\n")
	s.write("src/pages/c.yml", "url: /c\ntemplate: none\n")

	rec := &countingRecorder{pages: map[metrics.PageResult]int{}}
	_, err := s.run(s.config(""), WithRecorder(rec))
	require.NoError(t, err)
	require.Equal(t, map[metrics.PageResult]int{
		metrics.PageWritten: 1,
		metrics.PageSkipped: 1,
		metrics.PageFailed:  1,
	}, rec.pages)
	require.Equal(t, []metrics.BuildOutcome{metrics.OutcomeWarning}, rec.outcomes)
	require.Equal(t, []string{StageLoad, StagePlan, StageRender}, rec.stages)
}

func TestPipelineIsRerunnable(t *testing.T) {
	s := newSite(t)
	s.write("src/templates/t.html", "{{ .v }}")
	s.write("src/pages/a.yml", "url: /a\ntemplate: t\nv: 1\n")

	p := New(s.config(""))
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	s.write("src/pages/a.yml", "url: /a\ntemplate: t\nv: 2\n")
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2", s.read("/a"))
}

func TestFailurePolicyOverrides(t *testing.T) {
	t.Run("data file abort", func(t *testing.T) {
		s := newSite(t)
		s.write("src/config/broken.yml", "title: [\n")
		s.write("src/templates/t.html", "x")
		s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")

		_, err := s.run(s.config("failure_policy:\n  data_file: abort\n"))
		require.Error(t, err)
		require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryFileSystem))
		require.Contains(t, err.Error(), "broken.yml")
		require.NoFileExists(t, s.output("/a"))
	})

	t.Run("missing directory abort", func(t *testing.T) {
		s := newSite(t)
		_, err := s.run(s.config("failure_policy:\n  missing_dir: abort\n"))
		require.Error(t, err)
	})

	t.Run("missing template continue", func(t *testing.T) {
		s := newSite(t)
		s.write("src/templates/t.html", "ok")
		s.write("src/pages/a.yml", "url: /a\ntemplate: t\n")
		s.write("src/pages/b.yml", "url: /b\n")

		report, err := s.run(s.config("failure_policy:\n  missing_template: continue\n"))
		require.NoError(t, err)
		require.Equal(t, "ok", s.read("/a"))
		require.Equal(t, 1, report.Failed)
		require.Equal(t, FailMissingTemplate, report.Pages[0].Failure)
	})

	t.Run("duplicate url skip", func(t *testing.T) {
		s := newSite(t)
		s.write("src/templates/t.html", "{{ .name }}")
		s.write("src/pages/a.yml", "url: /about\ntemplate: t\nname: first\n")
		s.write("src/pages/b.yml", "url: /about/\ntemplate: t\nname: second\n")

		report, err := s.run(s.config("failure_policy:\n  duplicate_url: skip_page\n"))
		require.NoError(t, err)
		require.Equal(t, "first", s.read("/about"))
		require.Equal(t, 1, report.Skipped)
	})

	t.Run("missing url abort", func(t *testing.T) {
		s := newSite(t)
		s.write("src/templates/t.html", "x")
		s.write("src/pages/draft.yml", "template: t\n")

		_, err := s.run(s.config("failure_policy:\n  missing_url: abort\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "draft.yml")
	})

	t.Run("unknown widget continue", func(t *testing.T) {
		s := newSite(t)
		s.write("src/templates/page.html", "{{ .sections_content }}")
		s.write("src/pages/a.yml", "url: /a\ntemplate: page\ncontent_sections:\n  - widget: ghost\n")

		report, err := s.run(s.config("failure_policy:\n  unknown_widget: continue\n"))
		require.NoError(t, err)
		require.NoFileExists(t, s.output("/a"))
		require.Equal(t, FailUnknownWidget, report.Pages[0].Failure)
	})

	t.Run("widget compile drops widget", func(t *testing.T) {
		s := newSite(t)
		s.write("src/widgets/broken.html", "{{ .x ")
		s.write("src/widgets/good.html", "<b>good</b>")
		s.write("src/templates/page.html", "{{ .sections_content }}")
		s.write("src/pages/a.yml", "url: /a\ntemplate: page\ncontent_sections:\n  - widget: broken\n  - widget: good\n")

		report, err := s.run(s.config("failure_policy:\n  widget_compile: continue\n"))
		require.NoError(t, err)
		require.Equal(t, "<b>good</b>", s.read("/a"))
		require.Equal(t, 1, report.Widgets)
	})

	t.Run("render abort", func(t *testing.T) {
		s := newSite(t)
		s.write("src/templates/good.html", "fine")
		s.write("src/pages/a.yml", "url: /a\ntemplate: good\n")
		s.write("src/pages/b.yml", "url: /b\ntemplate: absent\n")
		s.write("src/pages/c.yml", "url: /c\ntemplate: good\n")

		report, err := s.run(s.config("failure_policy:\n  render: abort\n"))
		require.Error(t, err)
		require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryRender))
		require.Equal(t, "fine", s.read("/a"))
		require.NoFileExists(t, s.output("/c"))
		require.Equal(t, metrics.OutcomeFailed, report.Outcome)
	})

	t.Run("invalid override", func(t *testing.T) {
		s := newSite(t)
		_, err := s.run(s.config("failure_policy:\n  render: explode\n"))
		require.Error(t, err)
		require.True(t, siteerrors.IsCategory(err, siteerrors.CategoryValidation))
	})
}
