package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/inview/internal/config"
	"github.com/dshills/inview/internal/inview"
	"github.com/dshills/inview/internal/layout"
	"github.com/dshills/inview/internal/logging"
	"github.com/dshills/inview/internal/script"
)

// errNoLayout is returned when no layout document is configured.
var errNoLayout = errors.New("no layout document: pass --layout or set layout in " + config.FileName)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	verbosity  int
	configPath string
	layout     string
	predicate  string
	queries    []string
	threshold  float64
	offset     float64
	interval   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "inview",
		Short: "Track which layout nodes are inside the viewport",
		Long: `inview loads a layout document of rectangular nodes, resolves selector
queries against it and reports which nodes enter and leave the viewport
as it is scrolled and resized.

Settings are read from inview.toml, then INVIEW_* environment variables,
then flags.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(opts.verbosity, cmd.ErrOrStderr())
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	pf.StringVarP(&opts.configPath, "config", "c", config.FileName, "Configuration file")
	pf.StringVarP(&opts.layout, "layout", "l", "", "Layout document (TOML)")
	pf.StringVar(&opts.predicate, "predicate", "", "Lua script defining visible(el, opts)")
	pf.StringArrayVarP(&opts.queries, "query", "q", nil, "Selector to track (repeatable)")
	pf.Float64Var(&opts.threshold, "threshold", 0, "Fraction of each node that must be inside the viewport")
	pf.Float64Var(&opts.offset, "offset", 0, "Offset applied to every side of the viewport")
	pf.DurationVar(&opts.interval, "interval", inview.DefaultInterval, "Minimum time between check passes")

	root.AddCommand(newWatchCmd(opts), newCheckCmd(opts), newVersionCmd())
	return root
}

// settings layers the config file, the environment and the flags set on cmd.
func (o *rootOptions) settings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.Load(o.configPath)
	if err != nil {
		return s, err
	}
	if err := s.ApplyEnv(nil); err != nil {
		return s, err
	}

	flags := cmd.Flags()
	if flags.Changed("layout") {
		s.Layout = o.layout
	}
	if flags.Changed("predicate") {
		s.Predicate = o.predicate
	}
	if flags.Changed("query") {
		s.Queries = o.queries
	}
	if flags.Changed("threshold") {
		s.Threshold = o.threshold
	}
	if flags.Changed("offset") {
		s.Offset = config.Offset{Top: o.offset, Right: o.offset, Bottom: o.offset, Left: o.offset}
	}
	if flags.Changed("interval") {
		s.Interval = config.Duration{Duration: o.interval}
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	if s.Layout == "" {
		return s, errNoLayout
	}
	log.Debug().Str("layout", s.Layout).Strs("queries", s.Queries).Msg("Settings loaded")
	return s, nil
}

// newController builds a controller over doc configured from s. The
// returned function releases the predicate script, if any.
func newController(s config.Settings, doc *layout.Document, extra ...inview.Option) (*inview.Controller, func(), error) {
	opts := []inview.Option{
		inview.WithSource(doc),
		inview.WithGeometry(doc),
		inview.WithLogger(logging.Component("controller")),
	}
	opts = append(opts, s.ControllerOptions()...)
	opts = append(opts, extra...)

	c := inview.New(opts...)
	if err := s.Apply(c); err != nil {
		return nil, nil, err
	}

	if s.Predicate == "" {
		return c, func() {}, nil
	}
	sc, err := script.Load(s.Predicate,
		script.WithTimeout(s.ScriptTimeout.Duration),
		script.WithLogger(logging.Component("script")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("loading predicate: %w", err)
	}
	c.SetPredicate(sc.Predicate())
	return c, func() { _ = sc.Close() }, nil
}
