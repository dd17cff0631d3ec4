package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath   string
	registryDir  string
	databasePath string
	logLevel     string
	jsonOutput   bool
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit string) error {
	return NewRootCommand(version, commit).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(version, commit string) *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "formkit",
		Short: "Schema-driven entity forms and detail views",
		Long: `formkit loads form and detail declarations from a registry directory,
resolves their option lists from a sqlite catalog and validates, submits and
renders entities stored in the same database.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file path (default ./formkit.yaml)")
	pf.StringVar(&flags.registryDir, "registry", "", "registry directory, overrides registry.dir")
	pf.StringVar(&flags.databasePath, "db", "", "sqlite database path, overrides database.path")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level, overrides logging.level")
	pf.BoolVar(&flags.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newListCommand(flags))
	rootCmd.AddCommand(newLintCommand(flags))
	rootCmd.AddCommand(newPlanCommand(flags))
	rootCmd.AddCommand(newFillCommand(flags))
	rootCmd.AddCommand(newDetailCommand(flags))
	rootCmd.AddCommand(newSeedCommand(flags))
	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
