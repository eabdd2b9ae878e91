package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
)

func (a *app) runCmd() *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "run <account-id>",
		Short: "Run an assessment for an account with stored settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEnv(cmd, func(ctx context.Context, env *Env) error {
				var opts []narrative.Option
				if stream && !a.jsonOutput {
					opts = append(opts,
						narrative.WithStream(true),
						narrative.WithSink(func(s string) { fmt.Fprint(a.out, s) }))
				}

				report, err := env.Services.Engine.RunForAccount(ctx, args[0], opts...)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(report)
				}

				if stream {
					fmt.Fprintln(a.out)
				}
				printReport(a.out, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the narrative as it is generated")
	return cmd
}
