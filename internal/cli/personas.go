package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/focal-ai/focal/internal/domain"
)

func init() {
	rootCmd.AddCommand(personasCmd)
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the stakeholder panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Stakeholder panel (%d):\n", len(domain.AllPersonas()))
		for _, p := range domain.AllPersonas() {
			fmt.Fprintf(out, "  • %-17s %-18s %s\n", p.Key(), p.Name(), p.Focus())
		}
		return nil
	},
}
