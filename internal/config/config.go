package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
)

// DefaultPath is the build configuration file read when no --config flag is given.
const DefaultPath = ".config"

// Config represents the build configuration.
type Config struct {
	ConfigPath    string   `yaml:"config_path"`
	WidgetsPath   string   `yaml:"widgets_path"`
	TemplatesPath string   `yaml:"templates_path"`
	ExportPath    string   `yaml:"export_path"`
	PagesPath     PathList `yaml:"pages_path,omitempty"`
	CleanExport   bool     `yaml:"clean_export,omitempty"`
	ReportPath    string   `yaml:"report_path,omitempty"`

	// FailurePolicy overrides rows of the failure policy table, failure kind
	// to action.
	FailurePolicy map[string]string `yaml:"failure_policy,omitempty"`

	// Raw is the whole configuration document after defaults. It is merged over
	// the data pack to form the site settings, so templates can read any key.
	Raw map[string]any `yaml:"-"`
	// File is the path the configuration was loaded from.
	File string `yaml:"-"`
}

// PathList is a sequence of directories. A single scalar is accepted as a
// one-element list.
type PathList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PathList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*p = nil
			return nil
		}
		*p = PathList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: pages_path must be a string or a list of strings", value.Line)
	}
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, siteerrors.ConfigInvalid(configPath, err)
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path is operator supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, siteerrors.ConfigNotFound(configPath)
		}
		return nil, siteerrors.ConfigInvalid(configPath, fmt.Errorf("read: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, siteerrors.ConfigInvalid(configPath, err)
	}
	cfg.File = configPath
	return cfg, nil
}

// Parse decodes a configuration document, expands environment variables, applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	cfg.Raw = raw

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		ConfigPath:    DefaultConfigPath,
		WidgetsPath:   DefaultWidgetsPath,
		TemplatesPath: DefaultTemplatesPath,
		ExportPath:    DefaultExportPath,
		PagesPath:     PathList{"src/pages"},
		CleanExport:   true,
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// #nosec G306 -- configuration is not secret
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
