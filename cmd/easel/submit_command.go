package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/api"
	"easel/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var email string
	var priority int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Queue a drawing request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(args[0])
			if prompt == "" {
				return errors.New("prompt must not be empty")
			}
			return ctx.withStore(func(store *queue.Store) error {
				sub, err := store.Add(cmd.Context(), prompt, strings.TrimSpace(email), priority)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.FromSubmission(sub))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submission %d queued\n", sub.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Submitter email for completion notification")
	cmd.Flags().Int64VarP(&priority, "priority", "p", 0, "Priority score (higher runs first)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the created submission as JSON")
	return cmd
}
