package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docbridge/internal/schema"
)

// InferResult is the JSON payload of the infer command.
type InferResult struct {
	Fingerprint string          `json:"fingerprint"`
	Documents   int             `json:"documents"`
	Failures    []string        `json:"failures,omitempty"`
	Tables      json.RawMessage `json:"tables"`
}

// NewInferCommand creates the infer command.
func NewInferCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer relational tables from the backend's documents",
		Long: `Sample every keyspace of the configured backend and print the
inferred tables, columns and keys.

Examples:
  docbridge infer --data cars.json
  docbridge infer --config docbridge.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(rootOpts, cmd)
		},
	}
	return cmd
}

func runInfer(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sess, err := openSession(cmd.Context(), opts, formatter)
	if err != nil {
		return err
	}
	defer sess.finish(opts, cmd.ErrOrStderr())

	s := sess.conn.Schema()
	fp, err := s.Fingerprint()
	if err != nil {
		return formatter.Fail(ErrCodeInference, "fingerprint schema", err)
	}

	if opts.Format == "json" {
		tables, err := json.Marshal(s.Describe())
		if err != nil {
			return formatter.Fail(ErrCodeInference, "encode schema", err)
		}
		result := InferResult{Fingerprint: fp, Documents: sess.report.Documents, Tables: tables}
		for _, f := range sess.report.Failures {
			result.Failures = append(result.Failures, f.Error())
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, t := range s.Tables() {
		fmt.Fprint(w, formatTable(t))
	}
	for _, f := range sess.report.Failures {
		fmt.Fprintf(w, "skipped: %v\n", f)
	}
	fmt.Fprintf(w, "%d table(s) from %d document(s), fingerprint %s\n", s.Len(), sess.report.Documents, fp)
	return nil
}

// formatTable renders one table as an indented text block.
func formatTable(t *schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (keyspace %s", t.Name, t.SourceName)
	if d := t.Discriminator; d != nil {
		fmt.Fprintf(&b, ", %s = %q", d.Attribute, d.Value)
	}
	b.WriteString(")\n")

	pk := map[string]bool{}
	for _, c := range t.PrimaryKey {
		pk[c] = true
	}
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %-24s %-10s", c.Name, c.Type)
		if pk[c.Name] {
			b.WriteString(" primary key")
		}
		b.WriteString("\n")
	}
	if fk := t.ForeignKey; fk != nil {
		fmt.Fprintf(&b, "  foreign key (%s) references %s (%s)\n",
			strings.Join(fk.Columns, ", "), fk.Parent, strings.Join(fk.ParentColumns, ", "))
	}
	return b.String()
}
