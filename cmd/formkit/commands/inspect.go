package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/registry"
	"github.com/goliatone/go-formkit/pkg/schema"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the forms and detail views of the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			reg := a.engine.Registry()
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string][]string{
					"forms":   reg.Forms(),
					"details": reg.Details(),
				})
			}
			for _, line := range registry.Describe(reg) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newLintCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check declarations and the catalog sources they query",
		Long: `Lint loads every declaration of the registry, compiles each form and
reports remote option endpoints that have no catalog source in the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var errs []error
			if err := a.engine.Lint(); err != nil {
				errs = append(errs, err)
			}
			sources, err := a.store.Sources(ctx)
			if err != nil {
				return err
			}
			reg := a.engine.Registry()
			for _, id := range reg.Forms() {
				form, _ := reg.Form(id)
				for _, field := range form.Fields {
					if !field.Options.IsRemote() {
						continue
					}
					if endpoint := field.Options.Remote.Endpoint; !slices.Contains(sources, endpoint) {
						errs = append(errs, &schema.SchemaError{
							Scope:  id,
							Field:  field.Name,
							Reason: fmt.Sprintf("catalog source %q does not exist", endpoint),
						})
					}
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d form(s), %d detail view(s)\n", len(reg.Forms()), len(reg.Details()))
			return nil
		},
	}
}

func newPlanCommand(flags *globalFlags) *cobra.Command {
	var sections []string

	cmd := &cobra.Command{
		Use:   "plan <form-id>",
		Short: "Print the section layout of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			form, _, plan, err := a.engine.Compiled(args[0])
			if err != nil {
				return err
			}
			plan = plan.Subset(sections...)
			if flags.jsonOutput {
				return printJSON(cmd.OutOrStdout(), plan)
			}

			out := cmd.OutOrStdout()
			title := form.Title
			if title == "" {
				title = form.ID
			}
			fmt.Fprintf(out, "%s (entity %s)\n", title, form.Entity)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, section := range plan.Sections {
				heading := section.Title
				if heading == "" {
					heading = section.ID
				}
				fmt.Fprintf(tw, "\n[%s]\t%s\n", section.ID, heading)
				for _, field := range section.Fields {
					var flagsCol []string
					if field.Required {
						flagsCol = append(flagsCol, "required")
					}
					if field.Options.IsRemote() {
						flagsCol = append(flagsCol, "options="+field.Options.Remote.Endpoint)
					}
					if field.Hidden {
						flagsCol = append(flagsCol, "hidden")
					}
					fmt.Fprintf(tw, "  %s\t%s\t%d/12\t%s\n", field.Name, field.Type, field.Span, strings.Join(flagsCol, " "))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&sections, "section", nil, "only print these section ids")
	return cmd
}
