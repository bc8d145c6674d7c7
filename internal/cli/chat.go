package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true, "adiós": true, "adios": true}

// scriptedMessages exercise greeting, catalog questions and recall of
// earlier turns.
var scriptedMessages = []string{
	"Hola, mi nombre es Carlos",
	"¿Qué viajes tienes disponibles?",
	"Cuéntame más sobre el viaje a París",
	"¿Cuál es mi nombre?",
	"¿Qué opinas del cambio climático?",
	"Volviendo a los viajes, ¿cuál es el más barato?",
	"¿Cuánto cuesta el viaje a Tokyo?",
	"Gracias por tu ayuda",
}

type sendFunc func(ctx context.Context, message string) (string, error)

type ChatCmd struct{}

func NewChatCmd() *ChatCmd {
	return &ChatCmd{}
}

func (c *ChatCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Galleta interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			userName, err := cmd.Flags().GetString("user-name")
			if err != nil {
				return fmt.Errorf("failed to get user-name flag: %w", err)
			}
			userID, err := cmd.Flags().GetString("user-id")
			if err != nil {
				return fmt.Errorf("failed to get user-id flag: %w", err)
			}
			role, err := cmd.Flags().GetString("role")
			if err != nil {
				return fmt.Errorf("failed to get role flag: %w", err)
			}
			threadID, err := cmd.Flags().GetString("thread-id")
			if err != nil {
				return fmt.Errorf("failed to get thread-id flag: %w", err)
			}
			usePipeline, err := cmd.Flags().GetBool("pipeline")
			if err != nil {
				return fmt.Errorf("failed to get pipeline flag: %w", err)
			}
			scripted, err := cmd.Flags().GetBool("test")
			if err != nil {
				return fmt.Errorf("failed to get test flag: %w", err)
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

			if threadID == "" {
				threadID = "cli-" + uuid.NewString()
			}
			send := func(ctx context.Context, message string) (string, error) {
				req := assistant.Request{
					Message:  message,
					Role:     role,
					UserID:   userID,
					UserName: userName,
					ThreadID: threadID,
				}
				var (
					res *assistant.Response
					err error
				)
				if usePipeline {
					res, err = asst.Ask(ctx, req)
				} else {
					res, err = asst.Chat(ctx, req)
				}
				if err != nil {
					return "", err
				}
				return res.Reply, nil
			}

			if scripted {
				return runScript(ctx, cmd.OutOrStdout(), scriptedMessages, send)
			}
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), send)
		},
	}
	cmd.Flags().String("user-name", "", "name Galleta should address you by")
	cmd.Flags().String("user-id", "", "caller id")
	cmd.Flags().String("role", "usuario", "caller role for --pipeline: usuario, cliente, empleado or administrador")
	cmd.Flags().String("thread-id", "", "conversation thread id (random when empty)")
	cmd.Flags().Bool("pipeline", false, "answer through the role-gated database pipeline instead of the chat persona")
	cmd.Flags().Bool("test", false, "run a scripted conversation instead of reading stdin")
	return cmd
}

func isExitWord(s string) bool {
	return exitWords[strings.ToLower(strings.TrimSpace(s))]
}

// runREPL reads one message per line until EOF, an exit word or context
// cancellation. A failed turn is reported and the loop continues.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, send sendFunc) error {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "🍪 CHAT CON GALLETA 🍪")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Escribe 'salir' o 'exit' para terminar la conversación")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "👤 Tú: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if isExitWord(line) {
			fmt.Fprintln(out, "\n👋 ¡Hasta luego!")
			return nil
		}
		if line == "" {
			continue
		}

		reply, err := send(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "\n❌ Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(out, "\n🍪 Galleta: %s\n\n", reply)
	}
}

func runScript(ctx context.Context, out io.Writer, messages []string, send sendFunc) error {
	fmt.Fprintln(out, "🧪 Conversación de prueba 🍪")
	var failed int
	for i, msg := range messages {
		fmt.Fprintf(out, "\n[%d/%d] 👤 Usuario: %s\n", i+1, len(messages), msg)
		fmt.Fprintln(out, strings.Repeat("-", 60))
		reply, err := send(ctx, msg)
		if err != nil {
			failed++
			fmt.Fprintf(out, "❌ Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "🍪 Galleta: %s\n", reply)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripted messages failed", failed, len(messages))
	}
	return nil
}
