package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/identity"
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbAuditCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("name", "", "Display name carried in the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

// ─── db ─────────────────────────────────────────────────────────────────────

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer d.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database ready at %s\n", d.DB.Path())
		return nil
	},
}

var dbAuditCmd = &cobra.Command{
	Use:   "audit EMAIL",
	Short: "Check that a balance equals the sum of its transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		bal, sum, err := d.DB.AuditBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if bal != sum {
			return fmt.Errorf("ledger mismatch for %s: balance %d, transactions sum to %d", args[0], bal, sum)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: balance %d matches %d in transactions\n", args[0], bal, sum)
		return nil
	},
}

// ─── token ──────────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token EMAIL",
	Short: "Mint an HS256 bearer token (auth.mode = jwt)",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("no JWT secret configured: set FOCAL_JWT_SECRET or [auth].jwt_secret")
	}
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tok, err := identity.NewJWTVerifier(cfg.Auth.JWTSecret).Sign(domain.Identity{Email: args[0], Name: name}, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
