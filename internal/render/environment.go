// Package render wraps html/template into the site's rendering environment:
// page templates resolved by name from the templates directory, widgets
// compiled once and resolvable from any template, a fixed set of helper
// functions, and composition of a page's content sections.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"git.home.luguber.info/inful/pagesmith/internal/data"
)

// DefaultSuffix is appended to a template name to find its file.
const DefaultSuffix = ".html"

// ErrTemplateNotFound is returned when a page template file does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// ErrSealed is returned when widgets are registered after rendering started.
var ErrSealed = errors.New("environment already in use")

// WidgetError reports a widget that failed to compile.
type WidgetError struct {
	Name string
	Err  error
}

func (e *WidgetError) Error() string { return fmt.Sprintf("widget %q: %v", e.Name, e.Err) }

func (e *WidgetError) Unwrap() error { return e.Err }

// Options configures an Environment.
type Options struct {
	// TemplatesDir holds the page templates.
	TemplatesDir string
	// Suffix is appended to template names. Defaults to DefaultSuffix.
	Suffix string
	// Helpers are the functions available to every template and widget. Nil
	// selects DefaultHelpers. The widget and include helpers are always added.
	Helpers []Helper
	// Markdown converts markdown sections and the markdown helper. Nil selects
	// NewMarkdown().
	Markdown *Markdown
}

// Environment is the rendering environment of one build.
type Environment struct {
	dir      string
	suffix   string
	markdown *Markdown

	mu      sync.Mutex
	base    *template.Template // helpers and widgets; never executed
	widgets *template.Template // executable clone of base
	names   map[string]struct{}
	pages   map[string]*template.Template
}

// NewEnvironment creates an environment with no widgets registered.
func NewEnvironment(opts Options) *Environment {
	env := &Environment{
		dir:      opts.TemplatesDir,
		suffix:   opts.Suffix,
		markdown: opts.Markdown,
		names:    map[string]struct{}{},
		pages:    map[string]*template.Template{},
	}
	if env.suffix == "" {
		env.suffix = DefaultSuffix
	}
	if env.markdown == nil {
		env.markdown = NewMarkdown()
	}
	helpers := opts.Helpers
	if helpers == nil {
		helpers = DefaultHelpers(env.markdown)
	}
	funcs := FuncMap(helpers)
	funcs["widget"] = env.widgetHelper
	funcs["include"] = env.includeHelper

	env.base = template.New("pagesmith").Funcs(funcs)
	return env
}

// RegisterWidgets compiles every widget source into a named template of the
// environment. Widgets can then be rendered by the composer, with the widget
// helper, or with {{ template "name" . }}. Any compile failure is returned and
// leaves the environment unusable.
func (e *Environment) RegisterWidgets(widgets map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.widgets != nil {
		return ErrSealed
	}
	for _, name := range sortedKeys(widgets) {
		if _, err := e.base.New(name).Parse(widgets[name]); err != nil {
			return &WidgetError{Name: name, Err: err}
		}
		e.names[name] = struct{}{}
	}
	return nil
}

// HasWidget reports whether name is a registered widget.
func (e *Environment) HasWidget(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.names[name]
	return ok
}

// WidgetNames returns the registered widget names in sorted order.
func (e *Environment) WidgetNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.names)
}

// RenderWidget executes a registered widget with ctx.
func (e *Environment) RenderWidget(name string, ctx any) (template.HTML, error) {
	set, err := e.widgetSet()
	if err != nil {
		return "", err
	}
	if !e.HasWidget(name) {
		return "", fmt.Errorf("widget %q is not registered", name)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, ctx); err != nil {
		return "", err
	}
	// #nosec G203 -- widget output was produced by the html/template escaper
	return template.HTML(buf.String()), nil
}

// Template returns the compiled page template called name, loading
// <TemplatesDir>/<name><Suffix> on first use.
func (e *Environment) Template(name string) (*template.Template, error) {
	file := name + e.suffix
	if !filepath.IsLocal(file) {
		return nil, fmt.Errorf("template %q: name escapes the templates directory", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.pages[file]; ok {
		return t, nil
	}

	if err := e.sealLocked(); err != nil {
		return nil, err
	}

	path := filepath.Join(e.dir, file)
	src, err := os.ReadFile(path) // #nosec G304 -- path is confined to the templates directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	set, err := e.base.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone environment: %w", err)
	}
	t, err := set.New(file).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	e.pages[file] = t
	return t, nil
}

// Render executes the page template called name with ctx.
func (e *Environment) Render(name string, ctx data.Mapping) (string, error) {
	t, err := e.Template(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return buf.String(), nil
}

// Markdown returns the converter used by markdown sections.
func (e *Environment) Markdown() *Markdown { return e.markdown }

// widgetSet returns the executable widget set, sealing the environment.
func (e *Environment) widgetSet() (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sealLocked(); err != nil {
		return nil, err
	}
	return e.widgets, nil
}

// sealLocked freezes the widget list on first render. Callers hold e.mu.
func (e *Environment) sealLocked() error {
	if e.widgets != nil {
		return nil
	}
	set, err := e.base.Clone()
	if err != nil {
		return fmt.Errorf("clone environment: %w", err)
	}
	e.widgets = set
	return nil
}

// widgetHelper implements {{ widget "name" [ctx] }}. Unknown widgets render as
// nothing, the same as an unknown widget section.
func (e *Environment) widgetHelper(name string, ctx ...any) (template.HTML, error) {
	if !e.HasWidget(name) {
		return "", nil
	}
	var arg any
	if len(ctx) > 0 {
		arg = ctx[0]
	}
	return e.RenderWidget(name, arg)
}

// includeHelper implements {{ include "name" [ctx] }} for page templates.
func (e *Environment) includeHelper(name string, ctx ...any) (template.HTML, error) {
	t, err := e.Template(name)
	if err != nil {
		return "", err
	}
	var arg any
	if len(ctx) > 0 {
		arg = ctx[0]
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, arg); err != nil {
		return "", err
	}
	// #nosec G203 -- output was produced by the html/template escaper
	return template.HTML(buf.String()), nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
