package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/docbridge/internal/connector"
	"github.com/roach88/docbridge/internal/ir"
)

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Columns []string            `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	req := &RequestOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a request and print the relational rows",
		Long: `Translate a relational request, run it on the backend and print the
resulting rows. Condition nodes the backend cannot evaluate are applied
in memory.

Examples:
  docbridge query --data cars.json --from car --columns documentID,name --where "used = false"
  docbridge query --data cars.json --from car_tags --order-by "tags DESC" --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, req, cmd)
		},
	}
	req.register(cmd)
	return cmd
}

func runQuery(opts *RootOptions, req *RequestOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sel, err := req.Select()
	if err != nil {
		return formatter.Fail(ErrCodeRequest, "invalid request", err)
	}

	sess, err := openSession(cmd.Context(), opts, formatter)
	if err != nil {
		return err
	}
	defer sess.finish(opts, cmd.ErrOrStderr())

	ctx := cmd.Context()
	t, err := sess.conn.Translate(sel)
	if err != nil {
		return formatter.Fail(ErrCodeRequest, "translate", err)
	}
	formatter.VerboseLog("Native query: %s", t.Native)

	cur := t.Cursor()
	if err := cur.Execute(ctx); err != nil {
		return formatter.Fail(ErrCodeQuery, "execute", err)
	}
	rows, err := connector.ReadAll(ctx, cur)
	if err != nil {
		return formatter.Fail(ErrCodeQuery, "read rows", err)
	}
	formatter.VerboseLog("Read %d row(s)", len(rows))

	columns := t.Plan.Labels()
	if opts.Format == "json" {
		result := QueryResult{Columns: columns, Rows: make([][]json.RawMessage, len(rows))}
		for i, row := range rows {
			result.Rows[i] = make([]json.RawMessage, len(row))
			for j, v := range row {
				data, err := ir.MarshalIRValue(v)
				if err != nil {
					return formatter.Fail(ErrCodeQuery, "encode row", err)
				}
				result.Rows[i][j] = data
			}
		}
		return formatter.Success(result)
	}
	return formatter.Success(formatRows(columns, rows))
}

// formatRows renders rows as an aligned table with a header line.
func formatRows(columns []string, rows [][]ir.IRValue) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(&b, "(%d row(s))", len(rows))
	return b.String()
}

// formatValue renders strings bare and everything else as JSON.
func formatValue(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return string(s)
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
