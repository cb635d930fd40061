package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is a YAML or TOML properties file. Empty uses the defaults.
	Config string

	// Backend overrides the configured backend.
	Backend string

	// Data lists document files loaded before the command runs.
	Data []string

	// Metrics writes the translator metrics to stderr when the command ends.
	Metrics bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docbridge",
		Short: "docbridge - relational pushdown for document stores and caches",
		Long: `Infer relational tables from schema-less documents and translate
relational requests into native document store and cache queries.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "properties file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "backend override (document|cache)")
	cmd.PersistentFlags().StringSliceVarP(&opts.Data, "data", "d", nil, "document file to load (.json, .yaml or .yml), repeatable")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "write metrics in Prometheus text format to stderr")

	cmd.AddCommand(NewInferCommand(opts))
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewCapabilitiesCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
