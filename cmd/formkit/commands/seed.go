package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSeedCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load catalog sources and entities from a YAML seed file",
		Example: `  # Replace catalog sources and upsert entities
  formkit seed fixtures/tenders.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			seed, err := a.store.LoadSeed(ctx, file)
			if err != nil {
				return err
			}
			entities := 0
			for _, docs := range seed.Entities {
				entities += len(docs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d catalog source(s), %d entit(ies)\n", len(seed.Catalog), entities)
			return nil
		},
	}
}
