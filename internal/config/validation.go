package config

import (
	"path/filepath"

	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
)

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	export := filepath.Clean(c.ExportPath)
	if c.CleanExport {
		if export == "." {
			return siteerrors.ValidationFailed("export_path", "refusing to clean "+export)
		}
		if abs, err := filepath.Abs(export); err == nil {
			if filepath.Dir(abs) == abs {
				return siteerrors.ValidationFailed("export_path", "refusing to clean the filesystem root "+abs)
			}
			if wd, err := filepath.Abs("."); err == nil && abs == wd {
				return siteerrors.ValidationFailed("export_path", "refusing to clean the working directory")
			}
		}
	}
	for _, dir := range c.PagesPath {
		if dir == "" {
			return siteerrors.ValidationFailed("pages_path", "empty directory entry")
		}
	}
	return nil
}
