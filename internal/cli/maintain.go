package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/iconcache/internal/model"
)

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand(rootOpts *RootOptions) *cobra.Command {
	var user int

	cmd := &cobra.Command{
		Use:   "invalidate <package>",
		Short: "Drop every cached row of a package",
		Long: `Delete the persisted rows of a package for one user. The next lookup
renders them again.

Example:
  iconcache invalidate -m device.yaml com.example.mail --user 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				var n int64
				err := s.cache.Call(ctx, func(ctx context.Context) error {
					var err error
					n, err = s.cache.InvalidatePackage(ctx, args[0], model.UserHandle(user))
					return err
				})
				if err != nil {
					return WrapExitError(ExitFailure, ErrCodeOperation, "invalidate failed", err)
				}
				return s.out.Success(map[string]any{"package": args[0], "user": user, "deleted": n})
			})
		},
	}
	cmd.Flags().IntVarP(&user, "user", "u", 0, "user handle")
	return cmd
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	var pixelSize, dpi int

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Switch icon size or density, discarding every row",
		Long: `Recreate the icon table under a new schema ID. All persisted rows are
lost; run reconcile afterwards to repopulate.

Example:
  iconcache rebuild -m device.yaml --pixel-size 144 --dpi 320`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if pixelSize == 0 {
					pixelSize = s.cfg.Icon.PixelSize
				}
				if dpi == 0 {
					dpi = s.cfg.Icon.DPI
				}
				err := s.cache.Call(ctx, func(ctx context.Context) error {
					return s.cache.UpdateIconParameters(ctx, dpi, pixelSize)
				})
				if err != nil {
					return WrapExitError(ExitFailure, ErrCodeDatabase, "rebuild failed", err)
				}
				return s.out.Success(fmt.Sprintf("rebuilt for %dpx at %d dpi", pixelSize, dpi))
			})
		},
	}
	cmd.Flags().IntVar(&pixelSize, "pixel-size", 0, "icon edge in pixels (default from config)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "display density (default from config)")
	return cmd
}
