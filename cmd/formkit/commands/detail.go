package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDetailCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <detail-id> <entity-id>",
		Short: "Render a stored entity through a detail view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.engine.Detail(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), view)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for i, section := range view.Sections {
				if i > 0 {
					fmt.Fprintln(tw)
				}
				if section.Title != "" {
					fmt.Fprintf(tw, "%s\n", section.Title)
				}
				for _, entry := range section.Entries {
					fmt.Fprintf(tw, "  %s\t%s\n", entry.Label, entry.Value)
				}
			}
			return tw.Flush()
		},
	}
}
