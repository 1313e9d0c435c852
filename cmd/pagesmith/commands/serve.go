package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/pipeline"
	"git.home.luguber.info/inful/pagesmith/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Host     string        `help:"Interface to listen on." default:"127.0.0.1"`
	Port     int           `short:"p" help:"Port to listen on." default:"8080"`
	Interval time.Duration `help:"Also rebuild on this fixed interval (0 disables)." default:"0s"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	opts := watchOptions(cfg)
	opts.Interval = s.Interval
	watcher := preview.NewWatcher(buildFunc(root.Config, pipeline.WithRecorder(recorder)), opts)

	server := preview.NewServer(cfg.ExportPath, reg, watcher.Status())
	if err := server.Start(fmt.Sprintf("%s:%d", s.Host, s.Port)); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown error", logfields.Error(err))
		}
	}()

	return watcher.Run(ctx)
}
