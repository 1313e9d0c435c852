// Package preview keeps a site rebuilt while its sources change and serves
// the export directory over HTTP.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/pipeline"
)

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context) (*pipeline.Report, error)

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Missing directories are skipped.
	Dirs []string
	// Files are watched individually through their parent directory.
	Files []string
	// Ignore lists roots whose events never trigger a rebuild, typically the
	// export directory.
	Ignore []string
	// Debounce is the quiet window; zero selects DefaultDebounce.
	Debounce time.Duration
	// Interval schedules an unconditional rebuild; zero disables it.
	Interval time.Duration
}

// Watcher rebuilds the site on start, on every source change and optionally
// on a fixed interval. Builds never overlap.
type Watcher struct {
	build    BuildFunc
	opts     Options
	status   *Status
	files    map[string]struct{}
	schedule func(time.Duration, func()) (gocron.Scheduler, error)
}

// NewWatcher creates a watcher for build.
func NewWatcher(build BuildFunc, opts Options) *Watcher {
	w := &Watcher{
		build:    build,
		status:   &Status{},
		files:    map[string]struct{}{},
		schedule: startScheduler,
	}
	opts.Dirs = absPaths(opts.Dirs)
	opts.Ignore = absPaths(opts.Ignore)
	for _, f := range absPaths(opts.Files) {
		w.files[f] = struct{}{}
	}
	w.opts = opts
	return w
}

// Status returns the live build status.
func (w *Watcher) Status() *Status { return w.status }

// Run builds once, then watches until ctx is done. A failed build is logged
// and recorded; it does not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.rebuild(ctx)

	watcher, err := w.setupFileWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	deb := newDebouncer(w.opts.Debounce)
	defer deb.Stop()

	// The worker stops with Run, even when Run returns before ctx is done.
	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.rebuildWorker(workerCtx, deb.C)
	}()
	defer func() {
		stopWorker()
		wg.Wait()
	}()

	if w.opts.Interval > 0 {
		sched, err := w.schedule(w.opts.Interval, deb.Request)
		if err != nil {
			return err
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				slog.Warn("Scheduler shutdown error", logfields.Error(err))
			}
		}()
	}

	slog.Info("Watching for changes", logfields.Count(len(w.opts.Dirs)+len(w.files)))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watcher stopping")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(watcher, ev, deb.Trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) rebuildWorker(ctx context.Context, requests <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-requests:
			slog.Info("Change detected; rebuilding site")
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	report, err := w.build(ctx)
	w.status.record(report, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("Build failed", logfields.Error(err))
		return
	}
	if report != nil {
		slog.Info("Site rebuilt", slog.String("summary", report.Summary()))
	}
}

func (w *Watcher) setupFileWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for _, dir := range w.opts.Dirs {
		if w.ignored(dir) {
			continue
		}
		if err := addDirsRecursive(watcher, dir, w.ignored); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	for f := range w.files {
		dir := filepath.Dir(f)
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Watch add failed", logfields.Dir(dir), logfields.Error(err))
		}
	}
	return watcher, nil
}

func (w *Watcher) handleFileEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if !w.relevant(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(watcher, ev.Name, w.ignored)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

// relevant reports whether a change to path should trigger a rebuild.
func (w *Watcher) relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	if _, ok := w.files[path]; ok {
		return true
	}
	if shouldIgnoreEvent(path) {
		return false
	}
	for _, dir := range w.opts.Dirs {
		if within(dir, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	for _, root := range w.opts.Ignore {
		if within(root, path) {
			return true
		}
	}
	return false
}

func addDirsRecursive(w *fsnotify.Watcher, root string, skip func(string) bool) error {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		slog.Warn("Watch directory not found", logfields.Dir(root))
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skip(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Dir(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for editor and OS artefacts, and for the
// temporary files the pipeline renames into place.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		out = append(out, abs)
	}
	return out
}
