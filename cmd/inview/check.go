package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/inview/internal/inview"
	"github.com/dshills/inview/internal/layout"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		scrollX, scrollY float64
		width, height    float64
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the nodes visible for each query",
		Long: `check runs a single visibility pass over the layout at the given scroll
position and prints one line per query: the query, a tab, and the ids of
the visible nodes in document order ("-" when none are visible).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}

			doc, err := layout.Load(s.Layout)
			if err != nil {
				return err
			}
			if width > 0 || height > 0 {
				vp := doc.Viewport()
				if width <= 0 {
					width = vp.Width
				}
				if height <= 0 {
					height = vp.Height
				}
				doc.Resize(width, height)
			}
			doc.ScrollTo(scrollX, scrollY)

			c, release, err := newController(s, doc)
			if err != nil {
				return err
			}
			defer release()

			for _, q := range s.Queries {
				c.Resolve(q)
			}
			if err := c.CheckAll(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, q := range s.Queries {
				fmt.Fprintf(out, "%s\t%s\n", q, visibleIDs(c, q))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&scrollX, "scroll-x", 0, "Horizontal scroll position")
	f.Float64VarP(&scrollY, "scroll", "s", 0, "Vertical scroll position")
	f.Float64Var(&width, "width", 0, "Viewport width (default from the layout)")
	f.Float64Var(&height, "height", 0, "Viewport height (default from the layout)")
	return cmd
}

// visibleIDs lists the visible members of query's registry in element order.
func visibleIDs(c *inview.Controller, query string) string {
	r, ok := c.Lookup(query)
	if !ok {
		return "-"
	}
	var ids []string
	for _, el := range r.Elements() {
		if r.Contains(el) {
			ids = append(ids, el.ElementID())
		}
	}
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, " ")
}
