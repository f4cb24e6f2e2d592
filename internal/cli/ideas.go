package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(ideaCmd)
	ideaCmd.AddCommand(ideaShowCmd)

	historyCmd.Flags().StringP("user", "u", "", "Only show ideas submitted by this email")
	historyCmd.Flags().IntP("limit", "n", 10, "Number of ideas to show")
	ideaShowCmd.Flags().Bool("debate", false, "Print every debate turn")
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List refined ideas, newest first",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")

	d, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	items, err := d.DB.History(cmd.Context(), user, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No ideas yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDEBATE\tREQS\tTITLE")
	for _, it := range items {
		reqs := "-"
		if it.LatestRequirement != nil {
			reqs = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			it.ID, it.CreatedAt.Format("2006-01-02 15:04"), it.DebateCount, reqs, it.DisplayTitle)
	}
	return tw.Flush()
}

// ─── idea show ──────────────────────────────────────────────────────────────

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Inspect stored ideas",
}

var ideaShowCmd = &cobra.Command{
	Use:   "show IDEA_ID",
	Short: "Show an idea with its latest requirements",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdeaShow,
}

func runIdeaShow(cmd *cobra.Command, args []string) error {
	showDebate, _ := cmd.Flags().GetBool("debate")

	d, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	det, err := d.DB.Details(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n%s\n", det.Idea.DisplayTitle(), strings.Repeat("─", 60))
	fmt.Fprintf(out, "ID:      %s\n", det.Idea.ID)
	fmt.Fprintf(out, "Created: %s\n", det.Idea.CreatedAt.Format("2006-01-02 15:04:05"))
	if det.Idea.UserID != "" {
		fmt.Fprintf(out, "User:    %s\n", det.Idea.UserID)
	}
	fmt.Fprintf(out, "Rounds:  %d\n", len(det.DebateRounds))

	if showDebate {
		for _, r := range det.DebateRounds {
			fmt.Fprintf(out, "\n── Round %d ──\n", r.Round)
			for _, e := range r.Entries {
				fmt.Fprintf(out, "\n[%s]\n%s\n", e.AgentName, e.Message)
			}
		}
	}

	if det.LatestRequirement == nil {
		fmt.Fprintln(out, "\nNo requirements recorded.")
		return nil
	}
	req := det.LatestRequirement
	fmt.Fprintf(out, "\nREFINED REQUIREMENTS\n%s\n", req.RefinedRequirements)
	fmt.Fprintf(out, "\nTRADE-OFFS\n%s\n", req.TradeOffs)
	fmt.Fprintf(out, "\nNEXT STEPS\n%s\n", req.NextSteps)
	return nil
}
