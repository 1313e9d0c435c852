package config

// Directory defaults, relative to the working directory.
const (
	DefaultConfigPath    = "src/config"
	DefaultWidgetsPath   = "src/widgets"
	DefaultTemplatesPath = "src/templates"
	DefaultExportPath    = "dist"
)

// applyDefaults fills unset directories. pages_path is deliberately left alone:
// a configuration without it builds zero pages.
func applyDefaults(cfg *Config) {
	setDefault(cfg, &cfg.ConfigPath, "config_path", DefaultConfigPath)
	setDefault(cfg, &cfg.WidgetsPath, "widgets_path", DefaultWidgetsPath)
	setDefault(cfg, &cfg.TemplatesPath, "templates_path", DefaultTemplatesPath)
	setDefault(cfg, &cfg.ExportPath, "export_path", DefaultExportPath)
}

func setDefault(cfg *Config, field *string, key, value string) {
	if *field != "" {
		return
	}
	*field = value
	if cfg.Raw != nil {
		cfg.Raw[key] = value
	}
}
