package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
)

func (a *app) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse the report history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <account-id>",
		Short: "List reports newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				reports, err := env.Services.Engine.ListReports(ctx, args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(reports)
				}

				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDATE\tSCORE\tRISK\tSHADOW APPS")
				for _, r := range reports {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n",
						r.ID, r.Date.Format("2006-01-02 15:04"), r.Score, r.RiskLevel, r.Summary.ShadowAIApps)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <account-id> <report-id>",
		Short: "Show one report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				report, err := env.Services.Engine.GetReport(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(report)
				}
				printReport(a.out, report)
				return nil
			})
		},
	})

	var user string
	deleteCmd := &cobra.Command{
		Use:   "delete <account-id> <report-id>",
		Short: "Delete a report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				if err := env.Services.Engine.DeleteReport(ctx, args[0], args[1], user); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted report %s\n", args[1])
				return nil
			})
		},
	}
	deleteCmd.Flags().StringVar(&user, "user", "cli", "user recorded in the audit log")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func printReport(w io.Writer, r *assessment.Report) {
	fmt.Fprintf(w, "Report %s (%s)\n", r.ID, r.Date.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "  Health score:      %d\n", r.Score)
	fmt.Fprintf(w, "  Risk level:        %s\n", r.RiskLevel)
	fmt.Fprintf(w, "  AI apps:           %d (%d managed, %d shadow)\n",
		r.Summary.TotalAIApps, r.Summary.ManagedAIApps, r.Summary.ShadowAIApps)
	fmt.Fprintf(w, "  Unapproved in use: %d\n", r.Summary.UnapprovedAIApps)
	fmt.Fprintf(w, "  Shadow usage:      %.1f%%\n", r.Summary.ShadowUsageRate)
	fmt.Fprintf(w, "  Data to unmanaged: %d KB\n", r.Summary.DataExfiltrationKB)

	if len(r.PowerUsers) > 0 {
		fmt.Fprintln(w, "  Power users:")
		for _, u := range r.PowerUsers {
			fmt.Fprintf(w, "    %-24s %d\n", u.Email, u.PromptCount)
		}
	}

	if r.AIInsights != nil {
		fmt.Fprintf(w, "\n%s\n", r.AIInsights.Summary)
		for _, rec := range r.AIInsights.Recommendations {
			fmt.Fprintf(w, "  [%s] %s: %s\n", rec.Type, rec.Title, rec.Description)
		}
	}
}
