package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shadowscope/shadow-ai-assessor/internal/domain/assessment"
	"github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/domain/values"
)

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage stored account credentials",
	}

	var email, apiKey string
	setCmd := &cobra.Command{
		Use:   "set <account-id>",
		Short: "Store credentials for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if email != "" {
				parsed, err := values.NewEmail(email)
				if err != nil {
					return errors.NewValidationError("INVALID_EMAIL", err.Error())
				}
				email = parsed.String()
			}

			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				err := env.Services.Repositories.Settings.SaveSettings(ctx, assessment.Settings{
					AccountID: args[0],
					Email:     email,
					APIKey:    apiKey,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Saved settings for %s\n", args[0])
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&email, "email", "", "account email for key-based auth")
	setCmd.Flags().StringVar(&apiKey, "api-key", "", "API key or token")
	_ = setCmd.MarkFlagRequired("api-key")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				accounts, err := env.Services.Repositories.Settings.ListAccounts(ctx)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(accounts)
				}
				for _, id := range accounts {
					fmt.Fprintln(a.out, id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

func (a *app) logsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <account-id>",
		Short: "Show the audit log newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				entries, err := env.Services.Repositories.Audit.ListLogs(ctx, args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(entries)
				}

				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tACTION\tUSER\tSTATUS\tDESCRIPTION")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.User, e.Status, e.Description)
				}
				return w.Flush()
			})
		},
	}
}
