package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docbridge/internal/connector"
	"github.com/roach88/docbridge/internal/harness"
	"github.com/roach88/docbridge/internal/queryir"
)

// RequestOptions holds the flags that describe a relational request.
type RequestOptions struct {
	From    string
	Columns []string
	Where   string
	OrderBy []string
	Limit   int
	Offset  int
}

func (o *RequestOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.From, "from", "", "table to read (required)")
	cmd.Flags().StringSliceVar(&o.Columns, "columns", nil, `projected columns, "col" or "col AS alias"`)
	cmd.Flags().StringVarP(&o.Where, "where", "w", "", "condition, e.g. \"engine_hp > 200 AND name LIKE 'm%'\"")
	cmd.Flags().StringSliceVar(&o.OrderBy, "order-by", nil, `sort keys, "col" or "col DESC"`)
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "maximum rows (0 for no limit)")
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("from")
}

// Select parses the flags with the scenario request syntax.
func (o *RequestOptions) Select() (queryir.Select, error) {
	return harness.QueryStep{
		From:    o.From,
		Columns: o.Columns,
		Where:   o.Where,
		OrderBy: o.OrderBy,
		Limit:   o.Limit,
		Offset:  o.Offset,
	}.Select()
}

// TranslateResult is the JSON payload of the translate command.
type TranslateResult struct {
	connector.Explanation
	Refusals []string `json:"refusals,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	req := &RequestOptions{}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Show the native query a request translates to",
		Long: `Translate a relational request into the backend's native query and
report which condition nodes stay in memory.

Examples:
  docbridge translate --data cars.json --from car --where "engine_hp > 200"
  docbridge translate --backend cache --data cars.json --from car_tags --where "tags = 'red'"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, req, cmd)
		},
	}
	req.register(cmd)
	return cmd
}

func runTranslate(opts *RootOptions, req *RequestOptions, cmd *cobra.Command) error {
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

	validation := queryir.Validate(sel, sess.conn.Capabilities())
	e, err := sess.conn.Explain(sel)
	if err != nil {
		return formatter.Fail(ErrCodeRequest, "translate", err)
	}
	result := TranslateResult{Explanation: e, Refusals: validation.Refusals}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(formatExplanation(result))
}

// formatExplanation renders an explanation as text.
func formatExplanation(r TranslateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend:  %s\n", r.Backend)
	fmt.Fprintf(&b, "table:    %s\n", r.Table)
	fmt.Fprintf(&b, "native:   %s\n", r.Native)
	if len(r.Args) > 0 {
		fmt.Fprintf(&b, "args:     %s\n", strings.Join(r.Args, ", "))
	}
	fmt.Fprintf(&b, "columns:  %s\n", strings.Join(r.Columns, ", "))

	switch {
	case r.Exact:
		b.WriteString("pushdown: exact\n")
	case r.Pushed:
		b.WriteString("pushdown: partial\n")
	default:
		b.WriteString("pushdown: none\n")
	}
	if r.Residual != "" {
		fmt.Fprintf(&b, "residual: %s\n", r.Residual)
	}
	if r.Offset > 0 || r.Limit > 0 {
		fmt.Fprintf(&b, "window:   offset %d limit %d (in memory)\n", r.Offset, r.Limit)
	}
	for _, d := range r.Dropped {
		fmt.Fprintf(&b, "dropped:  %s (%s)\n", d.Condition, d.Reason)
	}
	for _, refusal := range r.Refusals {
		fmt.Fprintf(&b, "refused:  %s\n", refusal)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
