// Package data loads the YAML data pack, page definitions and widget sources a
// site is built from, and merges mappings with right-biased shallow precedence.
//
// Parse functions return a foundation.Result. The Init and List functions hand
// every failure to an ErrorHandler, which either degrades to an empty value or
// stops the load.
package data

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/pagesmith/internal/foundation"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// DataExtensions are the file suffixes treated as YAML data files.
var DataExtensions = []string{".yml", ".yaml"}

// WidgetExtension is the file suffix of widget template sources.
const WidgetExtension = ".html"

// ErrDirNotFound is returned by ListFiles when the directory does not exist.
var ErrDirNotFound = errors.New("directory not found")

// ParseDataFile reads and decodes one YAML document into a mapping. An empty
// document decodes to an empty mapping.
func ParseDataFile(path string) foundation.Result[Mapping, error] {
	raw, err := os.ReadFile(path) // #nosec G304 -- paths come from the site configuration
	if err != nil {
		return foundation.Err[Mapping](fmt.Errorf("read %s: %w", path, err))
	}
	m, err := ParseData(raw)
	if err != nil {
		return foundation.Err[Mapping](fmt.Errorf("parse %s: %w", path, err))
	}
	slog.Info("Data file loaded", logfields.Path(path))
	return foundation.Ok[Mapping, error](m)
}

// ParseData decodes a YAML document whose top level must be a mapping.
func ParseData(raw []byte) (Mapping, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Mapping{}, nil
	}
	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// ParseWidgetFile returns the widget source text. Content that is not valid
// UTF-8 is rejected.
func ParseWidgetFile(path string) foundation.Result[string, error] {
	raw, err := os.ReadFile(path) // #nosec G304 -- paths come from the site configuration
	if err != nil {
		return foundation.Err[string](fmt.Errorf("read %s: %w", path, err))
	}
	if !utf8.Valid(raw) {
		return foundation.Err[string](fmt.Errorf("decode %s: content is not valid UTF-8", path))
	}
	slog.Info("Widget file loaded", logfields.Path(path))
	return foundation.Ok[string, error](string(raw))
}

// ListFiles returns the sorted names of the regular files in dir whose name ends
// with one of exts. Subdirectories are not descended into.
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name(), exts) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Problem names the kind of loader failure passed to an ErrorHandler.
type Problem string

const (
	ProblemDataFile   Problem = "data_file"
	ProblemWidgetFile Problem = "widget_file"
	ProblemDirectory  Problem = "directory"
)

// ErrorHandler decides what a loader does about a failure. Returning nil
// substitutes the empty value and carries on; an error stops loading and is
// returned by the loader unchanged.
type ErrorHandler func(problem Problem, path string, err error) error

// Degrade logs the failure and carries on. It is used when a loader is given a
// nil ErrorHandler.
func Degrade(problem Problem, path string, err error) error {
	if problem == ProblemDirectory {
		logDirError("Directory unavailable", path, err)
		return nil
	}
	slog.Warn("Error loading file", logfields.Path(path), slog.String("problem", string(problem)), logfields.Error(err))
	return nil
}

// ListPageFiles lists the page definition files of dir.
func ListPageFiles(dir string, onErr ErrorHandler) ([]string, error) {
	onErr = orDegrade(onErr)
	names, err := ListFiles(dir, DataExtensions...)
	if err != nil {
		return nil, onErr(ProblemDirectory, dir, err)
	}
	return names, nil
}

// InitDataPack folds every data file of dir, in name order, into one mapping.
// A file the handler lets through contributes nothing.
func InitDataPack(dir string, onErr ErrorHandler) (Mapping, error) {
	onErr = orDegrade(onErr)
	merged := Mapping{}
	names, err := ListFiles(dir, DataExtensions...)
	if err != nil {
		return merged, onErr(ProblemDirectory, dir, err)
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		res := ParseDataFile(path)
		if res.IsErr() {
			if err := onErr(ProblemDataFile, path, res.UnwrapErr()); err != nil {
				return nil, err
			}
			continue
		}
		merged = Merge(merged, res.Unwrap())
	}
	slog.Info("Data pack initialized", logfields.Dir(dir), logfields.Count(len(names)))
	return merged, nil
}

// InitWidgets loads every widget source of dir keyed by file name without its
// extension. A file the handler lets through is registered with empty source.
func InitWidgets(dir string, onErr ErrorHandler) (map[string]string, error) {
	onErr = orDegrade(onErr)
	widgets := map[string]string{}
	names, err := ListFiles(dir, WidgetExtension)
	if err != nil {
		return widgets, onErr(ProblemDirectory, dir, err)
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		res := ParseWidgetFile(path)
		if res.IsErr() {
			if err := onErr(ProblemWidgetFile, path, res.UnwrapErr()); err != nil {
				return nil, err
			}
		}
		widgets[strings.TrimSuffix(name, WidgetExtension)] = res.UnwrapOr("")
	}
	slog.Info("Widgets initialized", logfields.Dir(dir), logfields.Count(len(widgets)))
	return widgets, nil
}

func orDegrade(onErr ErrorHandler) ErrorHandler {
	if onErr == nil {
		return Degrade
	}
	return onErr
}

func logDirError(msg, dir string, err error) {
	if errors.Is(err, ErrDirNotFound) {
		slog.Warn(msg, logfields.Dir(dir), slog.String("reason", "not found"))
		return
	}
	slog.Warn(msg, logfields.Dir(dir), logfields.Error(err))
}
