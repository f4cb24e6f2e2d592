package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ─── Credits CLI ────────────────────────────────────────────────────────────
// Operator access to the ledger. Every change goes through the same atomic
// store primitives as the API, so the audit trail stays complete.

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsBalanceCmd)
	creditsCmd.AddCommand(creditsAddCmd)
	creditsCmd.AddCommand(creditsTransactionsCmd)

	creditsAddCmd.Flags().StringP("reason", "r", "Manual top-up", "Description recorded on the transaction")
	creditsTransactionsCmd.Flags().IntP("limit", "n", 20, "Number of transactions to show")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust user credits",
}

// ─── credits balance ────────────────────────────────────────────────────────

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance EMAIL",
	Short: "Show a user's credit balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreditsBalance,
}

func runCreditsBalance(cmd *cobra.Command, args []string) error {
	d, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	bal, err := d.Ledger.GetBalance(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credits\n", args[0], bal)
	return nil
}

// ─── credits add ────────────────────────────────────────────────────────────

var creditsAddCmd = &cobra.Command{
	Use:   "add EMAIL AMOUNT",
	Short: "Add credits to an existing user",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreditsAdd,
}

func runCreditsAdd(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", args[1])
	}
	reason, _ := cmd.Flags().GetString("reason")

	d, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	bal, err := d.Ledger.Credit(cmd.Context(), args[0], amount, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Added %d credits to %s (balance %d)\n", amount, args[0], bal)
	return nil
}

// ─── credits transactions ───────────────────────────────────────────────────

var creditsTransactionsCmd = &cobra.Command{
	Use:   "transactions EMAIL",
	Short: "List a user's credit transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreditsTransactions,
}

func runCreditsTransactions(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	d, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Ledger.ListTransactions(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(txs) == 0 {
		fmt.Fprintf(out, "No transactions for %s.\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tDESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\n", tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Kind, tx.Amount, tx.Description)
	}
	return tw.Flush()
}

