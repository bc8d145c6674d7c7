package cli

import (
	"fmt"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/spf13/cobra"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question through the role-gated database pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := cmd.Flags().GetString("role")
			if err != nil {
				return fmt.Errorf("failed to get role flag: %w", err)
			}
			userID, err := cmd.Flags().GetString("user-id")
			if err != nil {
				return fmt.Errorf("failed to get user-id flag: %w", err)
			}
			threadID, err := cmd.Flags().GetString("thread-id")
			if err != nil {
				return fmt.Errorf("failed to get thread-id flag: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			asst, err := a.assistant(ctx, a.catalog(ctx))
			if err != nil {
				return err
			}
			res, err := asst.Ask(ctx, assistant.Request{
				Message:  strings.Join(args, " "),
				Role:     role,
				UserID:   userID,
				ThreadID: threadID,
			})
			if err != nil {
				return err
			}
			a.log.Debug("ask finished", "outcome", res.Outcome, "thread_id", res.ThreadID)
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			return nil
		},
	}
	cmd.Flags().String("role", "usuario", "caller role: usuario, cliente, empleado or administrador")
	cmd.Flags().String("user-id", "", "caller id used to scope row lookups")
	cmd.Flags().String("thread-id", "", "conversation thread id")
	return cmd
}
