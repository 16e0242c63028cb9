package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/sources"
)

// ReconcileResult is what reconcile prints.
type ReconcileResult struct {
	Session    string               `json:"session"`
	Activities iconcache.ScanResult `json:"activities"`
	Shortcuts  iconcache.ScanResult `json:"shortcuts"`
	Deleted    int64                `json:"deleted"`
	Updated    []string             `json:"updated,omitempty"`
}

func (r ReconcileResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "activities: %d updated, %d inserted\n", r.Activities.Updates, r.Activities.Inserts)
	fmt.Fprintf(w, "shortcuts:  %d updated, %d inserted\n", r.Shortcuts.Updates, r.Shortcuts.Inserts)
	fmt.Fprintf(w, "deleted:    %d\n", r.Deleted)
	for _, pkg := range r.Updated {
		fmt.Fprintf(w, "  re-rendered %s\n", pkg)
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Bring the database in line with the device manifest",
		Long: `Diff every stored row against the installed activities and shortcuts of
all profiles. Stale rows are re-rendered, new items inserted and rows of
removed packages deleted.

Example:
  iconcache reconcile -m device.yaml --db icons.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, runReconcile)
		},
	}
}

func runReconcile(ctx context.Context, s *session) error {
	var (
		acts      []*sources.Activity
		shortcuts []*sources.Shortcut
	)
	for _, user := range s.registry.Profiles(ctx) {
		a, err := s.registry.Activities(ctx, user)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeManifest, "list activities", err)
		}
		sc, err := s.registry.Shortcuts(ctx, user)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeManifest, "list shortcuts", err)
		}
		acts = append(acts, a...)
		shortcuts = append(shortcuts, sc...)
	}

	var (
		result  ReconcileResult
		h       *iconcache.UpdateHandler
		updated = map[string]bool{}
	)
	// Runs on the worker, so no locking.
	onUpdated := func(pkgs []string, _ model.UserHandle) {
		for _, p := range pkgs {
			updated[p] = true
		}
	}

	err := s.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		h, err = iconcache.NewUpdateHandler(ctx, s.cache, s.ignoreOptions()...)
		if err != nil {
			return err
		}
		result.Session = h.Session()
		if result.Activities, err = iconcache.UpdateIcons(ctx, h, acts, sources.ActivityLogic{}, onUpdated); err != nil {
			return err
		}
		result.Shortcuts, err = iconcache.UpdateIcons(ctx, h, shortcuts, sources.ShortcutLogic{}, onUpdated)
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, ErrCodeOperation, "reconcile failed", err)
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	err = s.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		result.Deleted, err = h.Finish(ctx)
		for p := range updated {
			result.Updated = append(result.Updated, p)
		}
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, ErrCodeOperation, "reconcile failed", err)
	}
	slices.Sort(result.Updated)
	return s.out.Success(result)
}
