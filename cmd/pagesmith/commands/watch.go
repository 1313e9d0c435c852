package commands

import (
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/preview"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Interval time.Duration `help:"Also rebuild on this fixed interval (0 disables)." default:"0s"`
	Debounce time.Duration `help:"Quiet window after a change before rebuilding." default:"300ms"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	opts := watchOptions(cfg)
	opts.Interval = w.Interval
	opts.Debounce = w.Debounce
	return preview.NewWatcher(buildFunc(root.Config), opts).Run(ctx)
}
