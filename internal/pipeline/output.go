package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IndexFile is the file name every page is written as.
const IndexFile = "index.html"

// ErrOutsideExport is returned for a URL whose output would land outside the
// export root.
var ErrOutsideExport = errors.New("output path escapes export root")

// OutputPath derives <root>/<url without leading slashes>/index.html. The
// result always lies inside root.
func OutputPath(root, url string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(url, "/"))
	if rel == "" {
		return filepath.Join(root, IndexFile), nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideExport, url)
	}
	return filepath.Join(root, rel, IndexFile), nil
}

// writeAtomic writes content to a temporary file next to path and renames it
// into place, so a reader never sees a partial page.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pagesmith-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	// #nosec G302 -- generated pages are world readable
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
