package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/sources"
	"github.com/roach88/iconcache/internal/store"
)

// execute runs one step. Cache operations go through the worker; device
// changes apply to the registry directly, as a package manager would.
func (h *Harness) execute(ctx context.Context, st Step) (map[string]any, error) {
	switch st.Op {
	case OpResolve:
		return h.resolve(ctx, st)
	case OpReconcile:
		return h.reconcile(ctx)
	case OpInvalidate:
		var n int64
		err := h.cache.Call(ctx, func(ctx context.Context) error {
			var err error
			n, err = h.cache.InvalidatePackage(ctx, st.Package, model.UserHandle(st.User))
			return err
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": n}, nil
	case OpForget:
		cn, err := model.ParseComponentName(st.Component)
		if err != nil {
			return nil, err
		}
		return nil, h.cache.Call(ctx, func(ctx context.Context) error {
			h.cache.Invalidate(ctx, cn, model.UserHandle(st.User))
			return nil
		})
	case OpInstall:
		return nil, h.registry.Install(*st.Install)
	case OpUninstall:
		return nil, h.registry.Uninstall(st.Package)
	case OpSetVersion:
		return nil, h.registry.SetVersion(st.Package, st.Version, st.LastUpdate)
	case OpRebuild:
		return h.rebuild(ctx, st)
	case OpSetLocale:
		var fingerprint string
		err := h.cache.Call(ctx, func(ctx context.Context) error {
			state := h.cache.SystemState(ctx)
			state.Locales = st.Locales
			h.cache.UpdateSystemState(ctx, state)
			fingerprint = h.cache.SystemState(ctx).Fingerprint()
			return nil
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"fingerprint": fingerprint}, nil
	case OpCount:
		n, err := h.count(ctx, st.Prefix)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rows": n}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

func (h *Harness) resolve(ctx context.Context, st Step) (map[string]any, error) {
	cn, err := model.ParseComponentName(st.Component)
	if err != nil {
		return nil, err
	}
	user := model.UserHandle(st.User)
	flags := iconcache.LookupFlags{
		UseLowRes:       st.LowRes,
		UsePackageIcon:  !st.NoPackageFallback,
		UsePackageTitle: !st.NoPackageFallback,
	}

	var res map[string]any
	err = h.cache.Call(ctx, func(ctx context.Context) error {
		var entry *model.CacheEntry
		if st.Shortcut {
			entry = iconcache.Resolve(ctx, h.cache, cn, user, func() (*sources.Shortcut, bool) {
				return h.shortcut(ctx, cn, user)
			}, sources.ShortcutLogic{}, flags)
		} else {
			entry = iconcache.Resolve(ctx, h.cache, cn, user, func() (*sources.Activity, bool) {
				return h.registry.Activity(ctx, cn, user)
			}, sources.ActivityLogic{}, flags)
		}
		res = map[string]any{
			"title":               entry.Title,
			"content_description": entry.ContentDescription,
			"flags":               entry.Bitmap.Flags,
			"low_res":             entry.Bitmap.IsLowRes(),
			"default":             h.cache.IsDefaultIcon(ctx, entry.Bitmap, user),
		}
		return nil
	})
	return res, err
}

func (h *Harness) shortcut(ctx context.Context, cn model.ComponentName, user model.UserHandle) (*sources.Shortcut, bool) {
	shortcuts, err := h.registry.Shortcuts(ctx, user)
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

// reconcile runs a full session over every profile: activities first, then
// shortcuts, then the batched delete once the queued renders have drained.
func (h *Harness) reconcile(ctx context.Context) (map[string]any, error) {
	var (
		acts      []*sources.Activity
		shortcuts []*sources.Shortcut
	)
	for _, user := range h.registry.Profiles(ctx) {
		a, err := h.registry.Activities(ctx, user)
		if err != nil {
			return nil, err
		}
		sc, err := h.registry.Shortcuts(ctx, user)
		if err != nil {
			return nil, err
		}
		acts = append(acts, a...)
		shortcuts = append(shortcuts, sc...)
	}

	var (
		handler         *iconcache.UpdateHandler
		actScan, scScan iconcache.ScanResult
		updated         = map[string]struct{}{}
	)
	onUpdated := func(pkgs []string, _ model.UserHandle) {
		for _, p := range pkgs {
			updated[p] = struct{}{}
		}
	}

	err := h.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		if handler, err = iconcache.NewUpdateHandler(ctx, h.cache); err != nil {
			return err
		}
		if actScan, err = iconcache.UpdateIcons(ctx, handler, acts, sources.ActivityLogic{}, onUpdated); err != nil {
			return err
		}
		scScan, err = iconcache.UpdateIcons(ctx, handler, shortcuts, sources.ShortcutLogic{}, onUpdated)
		return err
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-handler.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var deleted int64
	err = h.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = handler.Finish(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := map[string]any{
		"session":    handler.Session(),
		"activities": actScan,
		"shortcuts":  scScan,
		"deleted":    deleted,
	}
	if len(updated) > 0 {
		res["updated"] = slices.Sorted(maps.Keys(updated))
	}
	return res, nil
}

func (h *Harness) rebuild(ctx context.Context, st Step) (map[string]any, error) {
	dpi := orDefault(st.DPI, h.dpi)
	err := h.cache.Call(ctx, func(ctx context.Context) error {
		return h.cache.UpdateIconParameters(ctx, dpi, st.PixelSize)
	})
	if err != nil {
		return nil, err
	}
	h.pixelSize, h.dpi = st.PixelSize, dpi

	n, err := h.count(ctx, "")
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows": n}, nil
}

// count returns the number of stored rows whose component starts with
// prefix, or all rows for an empty prefix.
func (h *Harness) count(ctx context.Context, prefix string) (int, error) {
	var filter queryir.Predicate
	if prefix != "" {
		filter = queryir.HasPrefix{Column: store.ColComponent, Prefix: prefix}
	}
	var n int
	err := h.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		n, err = h.cache.Store().Count(ctx, filter)
		return err
	})
	return n, err
}
