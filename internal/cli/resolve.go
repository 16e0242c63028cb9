package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/sources"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	User        int
	LowRes      bool
	PackageIcon bool
	Shortcut    bool
}

// ResolveResult is what resolve prints.
type ResolveResult struct {
	Component          string `json:"component"`
	User               int    `json:"user"`
	Title              string `json:"title"`
	ContentDescription string `json:"content_description"`
	Color              string `json:"color"`
	Flags              int32  `json:"flags"`
	IconBytes          int    `json:"icon_bytes"`
	LowRes             bool   `json:"low_res"`
	Default            bool   `json:"default"`
}

func (r ResolveResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s (user %d)\n", r.Component, r.User)
	fmt.Fprintf(w, "  title:   %q\n", r.Title)
	fmt.Fprintf(w, "  desc:    %q\n", r.ContentDescription)
	fmt.Fprintf(w, "  color:   %s  flags: %d\n", r.Color, r.Flags)
	switch {
	case r.Default:
		fmt.Fprintln(w, "  icon:    default")
	case r.LowRes:
		fmt.Fprintln(w, "  icon:    low-res placeholder")
	default:
		fmt.Fprintf(w, "  icon:    %d bytes\n", r.IconBytes)
	}
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <package/class>",
		Short: "Look up the icon and label of a component",
		Long: `Resolve a component through memory, the database and finally the
device manifest, persisting whatever had to be rendered.

Example:
  iconcache resolve -m device.yaml com.example.mail/.Inbox
  iconcache resolve -m device.yaml --shortcut com.example.mail/compose_new
  iconcache resolve -m device.yaml --user 10 --low-res com.example.mail/.Inbox`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cn, err := model.ParseComponentName(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeNotFound, "invalid component", err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				return runResolve(ctx, s, opts, cn)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.User, "user", "u", 0, "user handle")
	cmd.Flags().BoolVar(&opts.LowRes, "low-res", false, "accept a low-res placeholder")
	cmd.Flags().BoolVar(&opts.PackageIcon, "package-icon", true, "fall back to the package icon")
	cmd.Flags().BoolVar(&opts.Shortcut, "shortcut", false, "component names a shortcut (package/id)")

	return cmd
}

func runResolve(ctx context.Context, s *session, opts *ResolveOptions, cn model.ComponentName) error {
	user := model.UserHandle(opts.User)
	flags := iconcache.LookupFlags{
		UseLowRes:       opts.LowRes,
		UsePackageIcon:  opts.PackageIcon,
		UsePackageTitle: opts.PackageIcon,
	}

	var result ResolveResult
	err := s.cache.Call(ctx, func(ctx context.Context) error {
		var entry *model.CacheEntry
		if opts.Shortcut {
			entry = iconcache.Resolve(ctx, s.cache, cn, user, func() (*sources.Shortcut, bool) {
				return findShortcut(ctx, s, cn, user)
			}, sources.ShortcutLogic{}, flags)
		} else {
			entry = iconcache.Resolve(ctx, s.cache, cn, user, func() (*sources.Activity, bool) {
				return s.registry.Activity(ctx, cn, user)
			}, sources.ActivityLogic{}, flags)
		}

		result = ResolveResult{
			Component:          cn.Flatten(),
			User:               opts.User,
			Title:              entry.Title,
			ContentDescription: entry.ContentDescription,
			Color:              fmt.Sprintf("#%08x", uint32(entry.Bitmap.Color)),
			Flags:              entry.Bitmap.Flags,
			IconBytes:          len(entry.Bitmap.Icon),
			LowRes:             entry.Bitmap.IsLowRes(),
			Default:            s.cache.IsDefaultIcon(ctx, entry.Bitmap, user),
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, ErrCodeOperation, "resolve failed", err)
	}
	return s.out.Success(result)
}

func findShortcut(ctx context.Context, s *session, cn model.ComponentName, user model.UserHandle) (*sources.Shortcut, bool) {
	shortcuts, err := s.registry.Shortcuts(ctx, user)
	if err != nil {
		return nil, false
	}
	for _, sc := range shortcuts {
		if sc.Package == cn.Package && sc.ID == cn.Class {
			return sc, true
		}
	}
	return nil, false
}
