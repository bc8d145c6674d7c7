package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/spf13/cobra"
)

const catalogTable = "viajes"

type SetupCmd struct{}

func NewSetupCmd() *SetupCmd {
	return &SetupCmd{}
}

func (c *SetupCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Initialize the database from a SQL script",
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath, err := cmd.Flags().GetString("script")
			if err != nil {
				return fmt.Errorf("failed to get script flag: %w", err)
			}
			script, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Conectando a la base de datos...")
			db, err := a.database(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Ejecutando script de inicialización...")
			if err := db.ExecScript(ctx, string(script)); err != nil {
				return err
			}
			fmt.Fprintln(out, "✅ Base de datos inicializada correctamente!")

			in, err := introspect.New(introspect.Config{Logger: a.log, DB: db})
			if err != nil {
				return err
			}
			return reportSetup(ctx, out, in)
		},
	}
	cmd.Flags().String("script", "init_db.sql", "path to the SQL initialization script")
	return cmd
}

type setupReporter interface {
	tableCounter
	Resolve(ctx context.Context, raw string) (introspect.TableIdentity, error)
}

// reportSetup lists the resulting tables and, when the travel catalog table
// exists, how many trips it holds.
func reportSetup(ctx context.Context, out io.Writer, in setupReporter) error {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	fmt.Fprintln(out, "\n📋 Tablas en la base de datos:")
	for _, t := range tables {
		fmt.Fprintf(out, "  - %s\n", t)
	}

	t, err := in.Resolve(ctx, catalogTable)
	switch {
	case errors.Is(err, introspect.ErrTableNotFound), errors.Is(err, introspect.ErrAmbiguousTable):
		return nil
	case err != nil:
		return err
	}
	n, err := in.RowCount(ctx, t, nil)
	if err != nil {
		return fmt.Errorf("failed to count trips: %w", err)
	}
	fmt.Fprintf(out, "\n🌍 %d viajes disponibles en el catálogo\n", n)
	return nil
}
