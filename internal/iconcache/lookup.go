package iconcache

import (
	"context"
	"errors"

	"github.com/roach88/iconcache/internal/iconfactory"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/store"
)

// Resolve returns the entry for (component, user), consulting memory, then
// the store, then logic. The returned entry always has a non-nil bitmap.
//
// supplier is called at most once, and only when memory and store miss or
// the stored row has no label. It reports false when the item no longer
// exists.
//
// Freshly loaded icons are persisted. When logic.AddToMemCache is true the
// entry is also kept in memory.
func Resolve[T any](
	ctx context.Context,
	c *Cache,
	component model.ComponentName,
	user model.UserHandle,
	supplier func() (T, bool),
	logic CachingLogic[T],
	flags LookupFlags,
) *model.CacheEntry {
	c.worker.MustBeWorker(ctx, "Resolve")

	key := model.NewComponentKey(component, user)
	if entry, ok := c.mem.get(key); ok && (flags.UseLowRes || !entry.Bitmap.IsLowRes()) {
		c.metrics.lookup(sourceMemory)
		return entry
	}

	entry := model.NewCacheEntry()
	if logic.AddToMemCache() {
		c.mem.put(key, entry)
	}

	var (
		item    T
		have    bool
		fetched bool
	)
	fetch := func() {
		if !fetched {
			item, have = supplier()
			fetched = true
		}
	}

	if c.entryFromStore(ctx, key, entry, flags.UseLowRes) {
		c.metrics.lookup(sourceStore)
	} else {
		fetch()
		loadFallbackIcon(ctx, c, item, have, key, entry, logic, flags)
	}

	if !entry.HasTitle() {
		fetch()
		if have {
			loadFallbackTitle(c, item, entry, logic)
		}
	}
	if !entry.HasTitle() && flags.UsePackageTitle {
		if pkg := c.entryForPackage(ctx, component.Package, user, false); pkg != nil {
			entry.Title = pkg.Title
			entry.ContentDescription = pkg.ContentDescription
		}
	}
	return entry
}

// loadFallbackIcon fills entry after a store miss: from the live item if
// there is one, else from the package entry, else the default icon.
func loadFallbackIcon[T any](
	ctx context.Context,
	c *Cache,
	item T,
	have bool,
	key model.ComponentKey,
	entry *model.CacheEntry,
	logic CachingLogic[T],
	flags LookupFlags,
) {
	if have {
		bm, err := logic.LoadIcon(ctx, c, item)
		switch {
		case err != nil:
			c.logger.Warn("load icon failed",
				"component", key.Component.Flatten(), "user", key.User, "error", err)
		case bm.IsNullOrLowRes():
			c.logger.Debug("loader returned no icon",
				"component", key.Component.Flatten(), "user", key.User)
		default:
			entry.Bitmap = bm
			c.metrics.lookup(sourceProvider)
			if info, err := c.registry.PackageInfo(ctx, key.Component.Package, key.User); err == nil {
				if serial, err := c.users.SerialNumber(key.User); err == nil {
					c.addIconToDB(ctx, newRow(c, item, logic, info, serial, bm))
				}
			}
			return
		}
	}

	if flags.UsePackageIcon {
		if pkg := c.entryForPackage(ctx, key.Component.Package, key.User, false); pkg != nil {
			entry.Bitmap = pkg.Bitmap
			entry.Title = pkg.Title
			entry.ContentDescription = pkg.ContentDescription
		}
	}
	if entry.Bitmap.IsNullOrLowRes() {
		entry.Bitmap = c.DefaultIcon(ctx, key.User)
	}
	c.metrics.lookup(sourceFallback)
}

func loadFallbackTitle[T any](c *Cache, item T, entry *model.CacheEntry, logic CachingLogic[T]) {
	label := model.NormalizeLabel(logic.Label(item))
	if label == "" {
		return
	}
	entry.Title = label
	entry.ContentDescription = c.registry.UserBadgedLabel(label, logic.User(item))
}

// entryFromStore loads the row for key into entry. Rows written under a
// different system state are ignored. Returns false on a miss, which
// includes a full-resolution read whose icon blob cannot be decoded.
func (c *Cache) entryFromStore(ctx context.Context, key model.ComponentKey, entry *model.CacheEntry, lowRes bool) bool {
	serial, err := c.users.SerialNumber(key.User)
	if err != nil {
		c.logger.Warn("unknown user", "user", key.User, "error", err)
		return false
	}

	cols := store.HighResColumns
	if lowRes {
		cols = store.LowResColumns
	}
	row, err := c.store.Get(ctx,
		store.Key{Component: key.Component.Flatten(), User: serial},
		cols,
		queryir.Eq(store.ColSystemState, c.fingerprint),
	)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		c.logger.Warn("store read failed", "component", key.Component.Flatten(), "user", key.User, "error", err)
		return false
	}

	if !lowRes {
		if len(row.Icon) == 0 {
			return false
		}
		if err := iconfactory.ValidateIcon(row.Icon); err != nil {
			c.logger.Warn("stored icon unreadable", "component", key.Component.Flatten(), "user", key.User, "error", err)
			return false
		}
		entry.Bitmap = &model.BitmapInfo{Icon: row.Icon, Mono: row.Mono, Color: row.Color, Flags: row.Flags}
	} else {
		entry.Bitmap = model.NewLowRes(row.Color)
	}

	entry.Title = row.Label
	if row.Label != "" {
		entry.ContentDescription = c.registry.UserBadgedLabel(row.Label, key.User)
	}
	return true
}

// entryForPackage returns the package-level entry, loading it from the
// store or the registry. Returns nil when the package is not installed for
// user. Freshly loaded package entries are persisted and kept in memory.
func (c *Cache) entryForPackage(ctx context.Context, pkg string, user model.UserHandle, lowRes bool) *model.CacheEntry {
	key := model.PackageKey(pkg, user)
	if entry, ok := c.mem.get(key); ok && (lowRes || !entry.Bitmap.IsLowRes()) {
		return entry
	}

	entry := model.NewCacheEntry()
	if !c.entryFromStore(ctx, key, entry, lowRes) {
		info, err := c.registry.PackageInfo(ctx, pkg, user)
		if err != nil {
			c.logger.Debug("package not available", "package", pkg, "user", user, "error", err)
			return nil
		}
		src, err := c.registry.ApplicationIcon(ctx, pkg, user)
		if err != nil {
			c.logger.Warn("load application icon failed", "package", pkg, "user", user, "error", err)
			return nil
		}
		bm, err := c.RenderIcon(src, user, info.Instant)
		if err != nil {
			c.logger.Warn("render application icon failed", "package", pkg, "user", user, "error", err)
			return nil
		}

		entry.Title = model.NormalizeLabel(info.Label)
		entry.ContentDescription = c.registry.UserBadgedLabel(entry.Title, user)
		entry.Bitmap = bm
		if lowRes {
			entry.Bitmap = model.NewLowRes(bm.Color)
		}

		if serial, err := c.users.SerialNumber(user); err == nil {
			c.addIconToDB(ctx, store.Row{
				Component:   key.Component.Flatten(),
				User:        serial,
				LastUpdated: info.LastUpdateTime,
				Version:     info.VersionCode,
				Icon:        bm.Icon,
				Mono:        bm.Mono,
				Color:       bm.Color,
				Flags:       bm.Flags,
				Label:       entry.Title,
				SystemState: c.fingerprint,
			})
		}
	}

	c.mem.put(key, entry)
	return entry
}
