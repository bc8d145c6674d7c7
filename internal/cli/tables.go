package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type tableRow struct {
	Table introspect.TableIdentity
	Rows  int64
}

type TablesCmd struct{}

func NewTablesCmd() *TablesCmd {
	return &TablesCmd{}
}

func (c *TablesCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List user tables with their row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.introspector(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := collectTableRows(cmd.Context(), in)
			if err != nil {
				return err
			}
			renderTableRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

type tableCounter interface {
	ListTables(ctx context.Context) ([]introspect.TableIdentity, error)
	RowCount(ctx context.Context, t introspect.TableIdentity, scope *introspect.Scope) (int64, error)
}

func collectTableRows(ctx context.Context, in tableCounter) ([]tableRow, error) {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	rows := make([]tableRow, 0, len(tables))
	for _, t := range tables {
		n, err := in.RowCount(ctx, t, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", t, err)
		}
		rows = append(rows, tableRow{Table: t, Rows: n})
	}
	return rows, nil
}

func renderTableRows(w io.Writer, rows []tableRow) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Schema", "Table", "Rows"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, r := range rows {
		table.Append([]string{r.Table.Schema, r.Table.Name, strconv.FormatInt(r.Rows, 10)})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(len(rows))})
	table.Render()
}

type OverviewCmd struct{}

func NewOverviewCmd() *OverviewCmd {
	return &OverviewCmd{}
}

func (c *OverviewCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print every table with its columns and keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			maxTables, err := cmd.Flags().GetInt("max-tables")
			if err != nil {
				return fmt.Errorf("failed to get max-tables flag: %w", err)
			}
			if maxTables < 0 {
				return fmt.Errorf("--max-tables must not be negative")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if !cmd.Flags().Changed("max-tables") {
				maxTables = a.cfg.Pipeline.OverviewMaxTables
			}

			in, err := a.introspector(cmd.Context())
			if err != nil {
				return err
			}
			text, err := in.Overview(cmd.Context(), maxTables)
			if err != nil {
				return fmt.Errorf("failed to build overview: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().Int("max-tables", 0, "limit the number of tables described (0 means all)")
	return cmd
}
