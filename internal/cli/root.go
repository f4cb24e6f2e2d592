// Package cli implements the focal command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/focal-ai/focal/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "focal",
	Short: "Refine product ideas through a multi-stakeholder debate",
	Long: `Focal turns a raw product idea into refined requirements, trade-offs
and next steps. Five simulated stakeholders debate the idea over several
rounds and a strategist synthesizes the result. Each refinement costs
credits from the caller's ledger.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.focal/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return daemon.Load(path)
}

// openStore opens the database for offline commands. The caller closes it.
func openStore(cmd *cobra.Command) (*daemon.Daemon, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.OpenStore(cfg)
}
