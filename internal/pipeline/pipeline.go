// Package pipeline builds the site: it merges settings, registers widgets,
// validates every page definition and then renders each page to
// <export>/<url>/index.html.
//
// A build runs in two phases. The plan phase parses every page file, claims
// each page's output file and performs the checks that abort the build by
// default (duplicate url, missing template), so such a build writes nothing.
// The render phase then renders pages in plan order; a page that fails is
// recorded and the build moves on. The Policy table decides every failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/data"
	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/render"
	"git.home.luguber.info/inful/pagesmith/internal/util/sets"
)

// Stage names used for durations and logs.
const (
	StageLoad   = "load"
	StagePlan   = "plan"
	StageRender = "render"
)

// Pipeline builds a site from one configuration. A Pipeline may be run
// repeatedly but not concurrently; every Run starts from a fresh environment
// and URL set.
type Pipeline struct {
	cfg        *config.Config
	recorder   metrics.Recorder
	helpers    []render.Helper
	reportPath string
	overrides  map[FailureKind]Action
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithHelpers replaces the default template helpers.
func WithHelpers(helpers []render.Helper) Option {
	return func(p *Pipeline) {
		p.helpers = helpers
	}
}

// WithReportPath writes the JSON build report to path after every run,
// overriding report_path from the configuration.
func WithReportPath(path string) Option {
	return func(p *Pipeline) {
		if path != "" {
			p.reportPath = path
		}
	}
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		recorder:   metrics.NoopRecorder{},
		reportPath: cfg.ReportPath,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one build. The returned report is never nil. The error is
// non-nil only when the build aborted: a failure the policy aborts on, an
// invalid failure_policy, or cancellation of ctx.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := newReport()
	log := slog.With(logfields.BuildID(report.BuildID))
	log.Info("Build started", logfields.Path(p.cfg.File))

	err := p.run(ctx, log, report)
	canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	report.finish(err, canceled)

	p.recorder.ObserveBuildDuration(report.Duration())
	p.recorder.IncBuildOutcome(report.Outcome)

	if p.reportPath != "" {
		if perr := report.Persist(p.reportPath); perr != nil {
			log.Warn("Failed to write build report", logfields.Path(p.reportPath), logfields.Error(perr))
		} else {
			log.Debug("Build report written", logfields.Path(p.reportPath))
		}
	}

	if err != nil {
		return report, err
	}
	log.Info("Build finished",
		logfields.Count(report.Written),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		logfields.DurationMS(milliseconds(report.Duration())),
		slog.String("outcome", string(report.Outcome)))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, report *Report) error {
	var (
		settings data.Mapping
		env      *render.Environment
		pages    []*Page
	)

	err := p.stage(log, report, StageLoad, func() error {
		overrides, err := ParsePolicy(p.cfg.FailurePolicy)
		if err != nil {
			return err
		}
		p.overrides = overrides

		onErr := p.loadHandler(log)
		pack, err := data.InitDataPack(p.cfg.ConfigPath, onErr)
		if err != nil {
			return err
		}
		settings = data.Merge(pack, p.cfg.Raw)

		widgets, err := data.InitWidgets(p.cfg.WidgetsPath, onErr)
		if err != nil {
			return err
		}
		env, err = p.environment(log, widgets)
		if err != nil {
			return err
		}
		names := env.WidgetNames()
		report.Widgets = len(names)
		p.recorder.SetWidgetCount(len(names))
		log.Info("Widgets registered", logfields.Count(len(names)), slog.Any("widgets", names))
		return nil
	})
	if err != nil {
		return err
	}

	err = p.stage(log, report, StagePlan, func() error {
		var perr error
		pages, perr = p.plan(ctx, log, settings, report)
		return perr
	})
	if err != nil {
		return err
	}

	return p.stage(log, report, StageRender, func() error {
		if p.cfg.CleanExport {
			if err := p.cleanExport(log); err != nil {
				return err
			}
		}
		for _, page := range pages {
			if err := ctx.Err(); err != nil {
				return siteerrors.Canceled(err)
			}
			res, err := p.renderPage(log, env, settings, page)
			if err != nil {
				return err
			}
			report.add(res)
		}
		return nil
	})
}

// environment compiles widgets into a fresh render environment. Unless the
// policy aborts on widget_compile, a widget that does not compile is dropped
// and the rest are registered again.
func (p *Pipeline) environment(log *slog.Logger, widgets map[string]string) (*render.Environment, error) {
	widgets = maps.Clone(widgets)
	for {
		env := render.NewEnvironment(render.Options{
			TemplatesDir: p.cfg.TemplatesPath,
			Helpers:      p.helpers,
		})
		err := env.RegisterWidgets(widgets)
		if err == nil {
			return env, nil
		}
		var werr *render.WidgetError
		if !errors.As(err, &werr) {
			return nil, siteerrors.InternalError("register widgets", err)
		}
		serr := siteerrors.WidgetCompile(werr.Name, werr.Err)
		if p.actionFor(FailWidgetCompile) == ActionAbort {
			return nil, serr
		}
		log.Warn("Dropping widget that does not compile", logfields.Widget(werr.Name), logfields.Error(serr))
		delete(widgets, werr.Name)
	}
}

// loadFailures maps loader problems to their policy rows.
var loadFailures = map[data.Problem]FailureKind{
	data.ProblemDataFile:   FailDataFile,
	data.ProblemWidgetFile: FailWidgetFile,
	data.ProblemDirectory:  FailMissingDir,
}

// loadHandler applies the policy to loader failures: degrade carries on with
// an empty value, anything else stops the build.
func (p *Pipeline) loadHandler(log *slog.Logger) data.ErrorHandler {
	return func(problem data.Problem, path string, err error) error {
		kind, ok := loadFailures[problem]
		if !ok {
			kind = FailureKind(problem)
		}
		if p.actionFor(kind) == ActionDegrade {
			return data.Degrade(problem, path, err)
		}
		return siteerrors.Wrap(err, siteerrors.CategoryFileSystem, siteerrors.SeverityFatal, "load failed").
			WithContext("path", path).
			WithContext("failure", string(kind))
	}
}

// plan parses and validates every page file before anything is written. A
// page the policy does not abort on is recorded and left out of the build.
func (p *Pipeline) plan(ctx context.Context, log *slog.Logger, settings data.Mapping, report *Report) ([]*Page, error) {
	urls := sets.New[string]()
	outputs := map[string]string{}
	onErr := p.loadHandler(log)
	var pages []*Page

	for _, dir := range pagesDirs(settings[KeyPagesPath]) {
		names, err := data.ListPageFiles(dir, onErr)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, siteerrors.Canceled(err)
			}
			file := filepath.Join(dir, name)
			res := data.ParseDataFile(file)
			if res.IsErr() {
				if err := onErr(data.ProblemDataFile, file, res.UnwrapErr()); err != nil {
					return nil, err
				}
			}
			page := NewPage(file, res.UnwrapOr(data.Mapping{}))

			if kind, verr := p.validate(page, urls, outputs); verr != nil {
				if err := p.reject(log, report, page, kind, verr); err != nil {
					return nil, err
				}
				continue
			}
			page.State = StateValidated
			pages = append(pages, page)
		}
	}
	log.Debug("Plan complete", logfields.Count(len(pages)), slog.Int("urls", urls.Len()))
	return pages, nil
}

// validate checks a page's url and template and claims its output file. URLs
// that differ only in slashes share an output file and count as duplicates.
func (p *Pipeline) validate(page *Page, urls sets.Set[string], outputs map[string]string) (FailureKind, error) {
	if page.URL == "" {
		return FailMissingURL, siteerrors.MissingURL(page.File)
	}
	if !urls.Insert(page.URL) {
		return FailDuplicateURL, siteerrors.DuplicateURL(page.URL, page.File)
	}
	out, err := OutputPath(p.cfg.ExportPath, page.URL)
	if err != nil {
		return FailOutputPath, siteerrors.Wrap(err, siteerrors.CategoryFileSystem, siteerrors.SeverityError, "invalid output path").
			WithContext("file", page.File)
	}
	if other, taken := outputs[out]; taken {
		return FailDuplicateURL, siteerrors.DuplicateOutput(page.URL, other, page.File)
	}
	if page.Template == "" {
		return FailMissingTemplate, siteerrors.MissingTemplate(page.File)
	}
	outputs[out] = page.URL
	page.Output = out
	return "", nil
}

// reject records a page that failed validation. It returns err when the
// policy aborts the build.
func (p *Pipeline) reject(log *slog.Logger, report *Report, page *Page, kind FailureKind, err error) error {
	res := PageResult{File: page.File, URL: page.URL, Template: page.Template}
	if abort := p.pageFailure(log, &res, kind, err); abort != nil {
		return abort
	}
	page.State = res.State
	report.add(res)
	return nil
}

// renderPage builds the page context, renders the page template and writes
// the result. A failure is confined to this page unless the policy aborts.
func (p *Pipeline) renderPage(log *slog.Logger, env *render.Environment, settings data.Mapping, page *Page) (PageResult, error) {
	res := PageResult{File: page.File, URL: page.URL, Template: page.Template}
	defer func() { page.State = res.State }()

	ctx := data.Merge(settings, page.Data)
	res.State = StateContextBuilt

	if page.HasSections() {
		sections, err := p.resolveSections(log, env, page, render.ParseSections(page.Data[KeyContentSections]))
		if err != nil {
			return res, p.pageFailure(log, &res, FailUnknownWidget, err)
		}
		content, err := render.ComposeSections(env, sections, ctx)
		if err != nil {
			return res, p.pageFailure(log, &res, FailRender, siteerrors.RenderFailed(page.File, err))
		}
		ctx[KeySectionsContent] = content
	}

	html, err := env.Render(page.Template, ctx)
	if err != nil {
		return res, p.pageFailure(log, &res, FailRender, siteerrors.RenderFailed(page.File, err))
	}
	res.State = StateRendered

	if err := writeAtomic(page.Output, []byte(html)); err != nil {
		return res, p.pageFailure(log, &res, FailWrite, siteerrors.OutputFailed(page.Output, err))
	}
	res.State = StateWritten
	res.Output = page.Output
	res.Title = pageTitle(html)
	p.recorder.IncPageResult(metrics.PageWritten)
	log.Info("Page written", logfields.URL(page.URL), logfields.Template(page.Template), logfields.Output(page.Output))
	return res, nil
}

// resolveSections applies the policy to sections naming a widget that is not
// registered. A skipped section contributes nothing; any other action fails
// the page.
func (p *Pipeline) resolveSections(log *slog.Logger, env *render.Environment, page *Page, sections []render.Section) ([]render.Section, error) {
	kept := make([]render.Section, 0, len(sections))
	for _, s := range sections {
		if s.Kind == render.SectionWidget && !env.HasWidget(s.Widget) {
			switch p.actionFor(FailUnknownWidget) {
			case ActionSkipSection, ActionDegrade:
				log.Debug("Skipping unknown widget", logfields.Widget(s.Widget), logfields.File(page.File))
				continue
			default:
				return nil, siteerrors.RenderFailed(page.File, fmt.Errorf("unknown widget %q", s.Widget)).
					WithContext("widget", s.Widget)
			}
		}
		kept = append(kept, s)
	}
	return kept, nil
}

// pageFailure records a page-level failure according to the policy table. It
// returns err when the policy aborts the build.
func (p *Pipeline) pageFailure(log *slog.Logger, res *PageResult, kind FailureKind, err error) error {
	res.Failure = kind
	res.Error = err.Error()
	switch p.actionFor(kind) {
	case ActionAbort:
		return err
	case ActionSkipPage:
		res.State = StateSkipped
		p.recorder.IncPageResult(metrics.PageSkipped)
		log.Info("Skipping page", logfields.File(res.File), slog.String("reason", string(kind)))
	default:
		res.State = StateRenderFailed
		p.recorder.IncPageResult(metrics.PageFailed)
		log.Warn("Page failed", logfields.File(res.File), logfields.URL(res.URL), logfields.Template(res.Template),
			slog.String("failure", string(kind)), logfields.Error(err))
	}
	return nil
}

// actionFor returns the configured action for kind.
func (p *Pipeline) actionFor(kind FailureKind) Action {
	if a, ok := p.overrides[kind]; ok {
		return a
	}
	return ActionFor(kind)
}

func (p *Pipeline) cleanExport(log *slog.Logger) error {
	root := p.cfg.ExportPath
	if err := os.RemoveAll(root); err != nil {
		return siteerrors.Wrap(err, siteerrors.CategoryFileSystem, siteerrors.SeverityFatal, "clean export path").
			WithContext("output", root)
	}
	log.Info("Export path cleaned", logfields.Dir(root))
	return nil
}

func (p *Pipeline) stage(log *slog.Logger, report *Report, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	report.StageDurations[name] = d
	p.recorder.ObserveStageDuration(name, d)
	log.Debug("Stage complete", logfields.Stage(name), logfields.DurationMS(milliseconds(d)))
	return err
}

// pagesDirs normalises the pages_path setting. A single string is one
// directory; anything other than a string or a list yields none.
func pagesDirs(v any) []string {
	switch dirs := v.(type) {
	case nil:
		slog.Info("No pages_path configured; no pages to build")
		return nil
	case string:
		if dirs == "" {
			return nil
		}
		return []string{dirs}
	case []string:
		return dirs
	case []any:
		out := make([]string, 0, len(dirs))
		for _, d := range dirs {
			if s := scalar(d); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		slog.Warn("pages_path is neither a string nor a list; no pages to build",
			slog.String("type", fmt.Sprintf("%T", v)))
		return nil
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
