// Package commands implements the pagesmith command line.
package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/pipeline"
	"git.home.luguber.info/inful/pagesmith/internal/preview"
)

// LogLevelEnv overrides the log level chosen by --verbose.
const LogLevelEnv = "PAGESMITH_LOG_LEVEL"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config      string           `short:"c" help:"Build configuration file" default:".config"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	VersionFlag kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" default:"1" help:"Build the site once"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the site whenever its sources change"`
	Serve   ServeCmd   `cmd:"" help:"Watch, rebuild and serve the site over HTTP"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration and project layout"`
	Version VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel returns the level from PAGESMITH_LOG_LEVEL when it is set and
// valid, otherwise debug for --verbose and info by default.
func parseLogLevel(verbose bool) slog.Level {
	if v := strings.TrimSpace(os.Getenv(LogLevelEnv)); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			return level
		}
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// buildFunc reloads the configuration before every build so edits to it take
// effect without a restart.
func buildFunc(configPath string, opts ...pipeline.Option) preview.BuildFunc {
	return func(ctx context.Context) (*pipeline.Report, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return pipeline.New(cfg, opts...).Run(ctx)
	}
}

// watchOptions derives the watched paths from cfg. The build's own outputs are
// ignored so writing them never triggers another build.
func watchOptions(cfg *config.Config) preview.Options {
	dirs := []string{cfg.ConfigPath, cfg.WidgetsPath, cfg.TemplatesPath}
	dirs = append(dirs, cfg.PagesPath...)
	ignore := []string{cfg.ExportPath}
	if cfg.ReportPath != "" {
		ignore = append(ignore, cfg.ReportPath)
	}
	return preview.Options{
		Dirs:   dirs,
		Files:  []string{cfg.File, ".env", ".env.local"},
		Ignore: ignore,
	}
}
