package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/inview/internal/inview"
	"github.com/dshills/inview/internal/layout"
	"github.com/dshills/inview/internal/logging"
	"github.com/dshills/inview/internal/terminal"
	"github.com/dshills/inview/internal/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Browse the layout interactively and highlight visible nodes",
		Long: `watch draws the layout in the terminal. Arrow keys, j/k, PgUp/PgDn,
Home/End and the mouse wheel scroll; q or Esc quits. Visible nodes are
highlighted as they enter the viewport.

With --reload the layout file is re-read whenever it changes on disk.
Logs go to $XDG_STATE_HOME/inview/inview.log while the screen is active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("reload") {
				s.Watch = reload
			}

			if closer, err := logging.SetupFile(opts.verbosity, logging.DefaultLogPath()); err == nil {
				defer closer.Close()
			} else {
				log.Warn().Err(err).Msg("Logging to file unavailable")
			}

			doc, err := layout.Load(s.Layout)
			if err != nil {
				return err
			}
			screen, err := terminal.New(doc, terminal.WithLogger(logging.Component("terminal")))
			if err != nil {
				return err
			}

			extra := []inview.Option{inview.WithSignals(screen)}
			var watcher *watch.FileWatcher
			if s.Watch {
				watcher, err = watch.New(s.Layout,
					watch.WithDelay(s.Debounce.Duration),
					watch.WithReload(doc),
					watch.WithLogger(logging.Component("watch")),
				)
				if err != nil {
					return err
				}
				defer watcher.Close()
				extra = append(extra, inview.WithMutations(watcher))
			}

			c, release, err := newController(s, doc, extra...)
			if err != nil {
				return err
			}
			defer release()

			for _, q := range s.Queries {
				c.Resolve(q).
					On(inview.EventEnter, inview.Notify(func(el inview.Element) { screen.SetVisible(el.ElementID(), true) })).
					On(inview.EventExit, inview.Notify(func(el inview.Element) { screen.SetVisible(el.ElementID(), false) }))
			}

			if watcher != nil {
				// Registered before Start so reloaded nodes are resolved
				// before the mutation pass runs.
				cancel, err := watcher.ObserveMutations(func() {
					for _, q := range s.Queries {
						c.Resolve(q)
					}
				})
				if err != nil {
					return err
				}
				defer cancel()
			}

			if err := screen.Init(); err != nil {
				return err
			}
			defer screen.Fini()

			if err := c.Start(); err != nil {
				return err
			}
			defer func() { _ = c.Stop() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := screen.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&reload, "reload", "r", false, "Reload the layout when its file changes")
	return cmd
}
