package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/prompt"
)

func newFillCommand(flags *globalFlags) *cobra.Command {
	var (
		sections []string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "fill <form-id> [entity-id]",
		Short: "Fill a form interactively and submit it",
		Long: `Fill prompts for every visible field of the form in layout order. With an
entity id the stored entity prefills the answers and is patched on submit;
without one a new entity is created.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			entityID := ""
			if len(args) == 2 {
				entityID = args[1]
			}
			form, err := a.engine.Mount(ctx, args[0], entityID)
			if err != nil {
				return err
			}
			defer form.Close()

			filler := prompt.New(prompt.WithLogger(a.logger), prompt.WithSections(sections...))
			values, err := filler.Fill(ctx, form)
			if err != nil {
				return err
			}
			if dryRun {
				values, err = form.Validator.Validate(values)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), values)
			}

			result, err := form.Submit(ctx, values)
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			verb := "updated"
			if result.Created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", verb, form.Entity, result.EntityID)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sections, "section", nil, "only prompt for these section ids")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the values without submitting")
	return cmd
}
