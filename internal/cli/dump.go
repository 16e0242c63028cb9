package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/store"
)

// DumpRow is one persisted row as printed by dump.
type DumpRow struct {
	Component   string `json:"component"`
	UserSerial  int64  `json:"user_serial"`
	Version     int64  `json:"version"`
	LastUpdated int64  `json:"last_updated"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	SystemState string `json:"system_state"`
	IconBytes   int    `json:"icon_bytes"`
	Error       string `json:"error,omitempty"`
}

// DumpResult is what dump prints.
type DumpResult struct {
	Rows []DumpRow `json:"rows"`
}

func (r DumpResult) renderText(w io.Writer) {
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%-40s u%-3d v%-4d %-24q %s %dB",
			row.Component, row.UserSerial, row.Version, row.Label, row.Color, row.IconBytes)
		if row.Error != "" {
			fmt.Fprintf(w, "  !%s", row.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%d rows\n", len(r.Rows))
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List persisted rows",
		Long: `Print every persisted row ordered by component and user. Rows whose
icon blob fails to decode are listed with the error.

Example:
  iconcache dump -m device.yaml --prefix com.example.mail/`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				result, err := dumpRows(ctx, s.cache, prefix)
				if err != nil {
					return WrapExitError(ExitFailure, ErrCodeDatabase, "dump failed", err)
				}
				return s.out.Success(result)
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only components starting with this prefix")
	return cmd
}

func dumpRows(ctx context.Context, c *iconcache.Cache, prefix string) (DumpResult, error) {
	sel := queryir.Select{Columns: store.HighResColumns}
	if prefix != "" {
		sel.Filter = queryir.HasPrefix{Column: store.ColComponent, Prefix: prefix}
	}

	result := DumpResult{Rows: []DumpRow{}}
	err := c.Call(ctx, func(ctx context.Context) error {
		rows, err := c.Store().Query(ctx, sel)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row, rowErr := rows.Row()
			d := DumpRow{
				Component:   row.Component,
				UserSerial:  row.User,
				Version:     row.Version,
				LastUpdated: row.LastUpdated,
				Label:       row.Label,
				Color:       fmt.Sprintf("#%08x", uint32(row.Color)),
				SystemState: row.SystemState,
				IconBytes:   len(row.Icon),
			}
			if rowErr != nil {
				d.Error = rowErr.Error()
			}
			result.Rows = append(result.Rows, d)
		}
		return rows.Err()
	})
	return result, err
}
