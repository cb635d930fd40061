package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docbridge/internal/capability"
)

// CapabilitiesResult is the JSON payload of the capabilities command.
type CapabilitiesResult struct {
	Backend       string                 `json:"backend"`
	Flags         []capability.NamedFlag `json:"flags"`
	MaxInListSize int                    `json:"max_in_list_size"`
	MaxFromGroups int                    `json:"max_from_groups"`
}

// NewCapabilitiesCommand creates the capabilities command.
func NewCapabilitiesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities [backend]",
		Short: "Print the pushdown capabilities of a backend",
		Long: `Print the capability descriptor of a backend: which predicate and
clause shapes it accepts, and its numeric limits. Without an argument the
configured backend is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapabilities(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runCapabilities(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var backend string
	if len(args) == 1 {
		backend = args[0]
	} else {
		cfg, err := loadConfig(opts)
		if err != nil {
			return formatter.Fail(ErrCodeConfig, "load config", err)
		}
		backend = cfg.Backend
	}

	d, ok := capability.ForBackend(backend)
	if !ok {
		return formatter.Fail(ErrCodeConfig, "capabilities", fmt.Errorf("unknown backend %q", backend))
	}
	result := CapabilitiesResult{
		Backend:       d.Name(),
		Flags:         d.Names(),
		MaxInListSize: d.MaxInListSize(),
		MaxFromGroups: d.MaxFromGroups(),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", result.Backend)
	for _, f := range result.Flags {
		mark := "-"
		if f.Enabled {
			mark = "+"
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, f.Name)
	}
	fmt.Fprintf(&b, "  max IN-list size: %s\n", limitText(result.MaxInListSize))
	fmt.Fprintf(&b, "  max FROM groups:  %s", limitText(result.MaxFromGroups))
	return formatter.Success(b.String())
}

func limitText(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
