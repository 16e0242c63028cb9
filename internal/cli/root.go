package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	Database string
	Manifest string
	Metrics  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the iconcache CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "iconcache",
		Short: "Persistent icon and label cache",
		Long: `Inspect and maintain a persistent icon and label cache.

Installed packages come from a YAML device manifest; rendered icons and
labels are kept in a SQLite database so later lookups skip rendering.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "CUE config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.Manifest, "manifest", "m", "", "device manifest (YAML)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print cache metrics to stderr on exit")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewInvalidateCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}
