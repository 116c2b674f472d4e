package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mirage/internal/scenario"
)

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := scenario.Names()

			if rootOpts.Format == "json" {
				type entry struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				entries := make([]entry, 0, len(names))
				for _, name := range names {
					sc, err := scenario.Lookup(name)
					if err != nil {
						return err
					}
					entries = append(entries, entry{Name: sc.Name, Description: sc.Description})
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
			}

			for _, name := range names {
				sc, err := scenario.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sc.Name, sc.Description)
			}
			return nil
		},
	}
	return cmd
}
