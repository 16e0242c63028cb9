package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/iconcache/internal/iconcache"
)

// StatsResult is what stats prints.
type StatsResult struct {
	Database    string `json:"database"`
	SchemaID    int    `json:"schema_id"`
	StoreRows   int    `json:"store_rows"`
	MemEntries  int    `json:"mem_entries"`
	Fingerprint string `json:"fingerprint"`
}

func (r StatsResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "database:    %s\n", r.Database)
	fmt.Fprintf(w, "schema:      %#x\n", r.SchemaID)
	fmt.Fprintf(w, "rows:        %d\n", r.StoreRows)
	fmt.Fprintf(w, "memory:      %d\n", r.MemEntries)
	fmt.Fprintf(w, "fingerprint: %s\n", r.Fingerprint)
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show database size and schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				var st iconcache.Stats
				err := s.cache.Call(ctx, func(ctx context.Context) error {
					var err error
					st, err = s.cache.Stats(ctx)
					return err
				})
				if err != nil {
					return WrapExitError(ExitFailure, ErrCodeDatabase, "stats failed", err)
				}
				return s.out.Success(StatsResult{
					Database:    st.Database,
					SchemaID:    st.SchemaID,
					StoreRows:   st.StoreRows,
					MemEntries:  st.MemEntries,
					Fingerprint: st.Fingerprint,
				})
			})
		},
	}
}
