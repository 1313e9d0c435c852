package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	siteerrors "git.home.luguber.info/inful/pagesmith/internal/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Report      string `name:"report" type:"path" help:"Write the JSON build report to this file (overrides report_path)."`
	MetricsFile string `name:"metrics-file" type:"path" help:"Write Prometheus metrics in textfile format after the build."`
	Strict      bool   `help:"Exit with an error when any page failed to render."`

	out io.Writer `kong:"-"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	opts := []pipeline.Option{pipeline.WithReportPath(b.Report)}
	var reg *prom.Registry
	if b.MetricsFile != "" {
		reg = prom.NewRegistry()
		opts = append(opts, pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
	}

	report, runErr := pipeline.New(cfg, opts...).Run(ctx)

	if reg != nil {
		if err := metrics.WriteTextfile(reg, b.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics file", logfields.Path(b.MetricsFile), logfields.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	out := b.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, "Built %d pages (%d skipped, %d failed) into %s\n",
		report.Written, report.Skipped, report.Failed, cfg.ExportPath)

	if b.Strict && report.Failed > 0 {
		return siteerrors.New(siteerrors.CategoryRender, siteerrors.SeverityError,
			fmt.Sprintf("%d pages failed to render", report.Failed))
	}
	return nil
}
