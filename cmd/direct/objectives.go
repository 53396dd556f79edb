package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List the built-in objective functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDIMS\tMINIMUM\tDESCRIPTION")
			for _, e := range objectives.Catalog() {
				dims := "any"
				if e.Dims > 0 {
					dims = fmt.Sprint(e.Dims)
				}
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", e.Name, dims, e.Minimum, e.Description)
			}
			return tw.Flush()
		},
	}
}
