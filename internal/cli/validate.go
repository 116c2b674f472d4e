package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mirage/internal/config"
	"github.com/roach88/mirage/internal/scenario"
	"github.com/roach88/mirage/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a config without running it",
		Long: `Validate a simulation config: schema-check the YAML, resolve the
scenario, and register its event schemas and entity types.

Example:
  mirage validate ./configs/ecommerce.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}

			sc, err := scenario.Lookup(cfg.Scenario)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown scenario", err)
			}

			reg := schema.NewRegistry()
			if err := sc.Register(reg); err != nil {
				return WrapExitError(ExitCommandError, "scenario registration failed", err)
			}

			// Seeded entity types must exist in the scenario.
			for name := range cfg.InitialEntities {
				if _, ok := reg.Entity(name); !ok {
					return WrapExitError(ExitCommandError, "invalid config",
						fmt.Errorf("initial_entities names unknown entity type %q", name))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: scenario %s, %d event schemas, %d entity types, %d flows\n",
				sc.Name, len(reg.Events()), len(reg.Entities()), len(sc.Flows()))
			return nil
		},
	}
	return cmd
}
