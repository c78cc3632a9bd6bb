package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marben/mandel_atlas/internal/config"
)

// newRegionsCmd lists the landmarks accepted by --region.
func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the named regions accepted by --region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREAL\tIMAGINARY")
			for _, name := range config.Regions() {
				r, err := config.Region(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t[%g, %g]\t[%g, %g]\n", name, r.X.Min, r.X.Max, r.Y.Min, r.Y.Max)
			}
			return w.Flush()
		},
	}
}
