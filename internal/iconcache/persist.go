package iconcache

import (
	"context"

	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/store"
)

// AddIconToDBAndMemCache renders item and writes it to the store, and to
// memory when logic allows. With replace false an already decoded memory
// entry is reused instead of loading the icon again.
//
// Returns false when no icon could be produced or the write failed.
func AddIconToDBAndMemCache[T any](
	ctx context.Context,
	c *Cache,
	item T,
	logic CachingLogic[T],
	info model.PackageInfo,
	userSerial int64,
	replace bool,
) bool {
	c.worker.MustBeWorker(ctx, "AddIconToDBAndMemCache")

	key := model.NewComponentKey(logic.Component(item), logic.User(item))

	var entry *model.CacheEntry
	if !replace {
		if e, ok := c.mem.get(key); ok && !e.Bitmap.IsNullOrLowRes() {
			entry = e
		}
	}
	if entry == nil {
		bm, err := logic.LoadIcon(ctx, c, item)
		if err != nil {
			c.logger.Warn("load icon failed", "component", key.Component.Flatten(), "user", key.User, "error", err)
			return false
		}
		if !bm.CanPersist() {
			return false
		}
		entry = &model.CacheEntry{Bitmap: bm}
	}

	entry.Title = model.NormalizeLabel(logic.Label(item))
	entry.ContentDescription = c.registry.UserBadgedLabel(entry.Title, key.User)
	if logic.AddToMemCache() {
		c.mem.put(key, entry)
	}

	return c.addIconToDB(ctx, newRow(c, item, logic, info, userSerial, entry.Bitmap))
}

func newRow[T any](c *Cache, item T, logic CachingLogic[T], info model.PackageInfo, serial int64, bm *model.BitmapInfo) store.Row {
	return store.Row{
		Component:   logic.Component(item).Flatten(),
		User:        serial,
		LastUpdated: logic.LastUpdated(item, info),
		Version:     info.VersionCode,
		Icon:        bm.Icon,
		Mono:        bm.Mono,
		Color:       bm.Color,
		Flags:       bm.Flags,
		Label:       model.NormalizeLabel(logic.Label(item)),
		SystemState: c.fingerprint,
		Keywords:    logic.Keywords(item, c.systemState),
	}
}

// addIconToDB writes row, logging failures. Store errors never propagate
// past the cache.
func (c *Cache) addIconToDB(ctx context.Context, row store.Row) bool {
	if err := c.store.InsertOrReplace(ctx, row); err != nil {
		c.logger.Error("store write failed", "component", row.Component, "user_serial", row.User, "error", err)
		return false
	}
	c.metrics.storeWrites.Inc()
	return true
}

// Invalidate drops the memory entry for (component, user) and the
// package-level entry of its package. The store is untouched.
func (c *Cache) Invalidate(ctx context.Context, component model.ComponentName, user model.UserHandle) {
	c.worker.MustBeWorker(ctx, "Invalidate")
	c.mem.remove(model.NewComponentKey(component, user))
	c.mem.remove(model.PackageKey(component.Package, user))
}

// InvalidatePackage drops every memory entry of pkg for user and deletes
// the package's rows from the store. Returns the number of rows deleted.
func (c *Cache) InvalidatePackage(ctx context.Context, pkg string, user model.UserHandle) (int64, error) {
	c.worker.MustBeWorker(ctx, "InvalidatePackage")

	removed := c.mem.removeIf(func(k model.ComponentKey) bool {
		return k.User == user && k.Component.Package == pkg
	})

	serial, err := c.users.SerialNumber(user)
	if err != nil {
		return 0, err
	}
	n, err := c.store.Delete(ctx, queryir.AllOf(
		queryir.HasPrefix{Column: store.ColComponent, Prefix: pkg + "/"},
		queryir.Eq(store.ColUser, serial),
	))
	if err != nil {
		c.logger.Error("store delete failed", "package", pkg, "user", user, "error", err)
		return 0, err
	}
	c.metrics.storeDeletes.Add(float64(n))
	c.logger.Debug("package invalidated", "package", pkg, "user", user, "memory", removed, "rows", n)
	return n, nil
}

// CachePackageInstallInfo seeds the package-level memory entry while a
// package is still installing. Only memory is updated; the entry is kept
// only when it has both a title and an icon.
func (c *Cache) CachePackageInstallInfo(ctx context.Context, pkg string, user model.UserHandle, bm *model.BitmapInfo, title string) {
	c.worker.MustBeWorker(ctx, "CachePackageInstallInfo")

	c.mem.removeIf(func(k model.ComponentKey) bool {
		return k.User == user && k.Component.Package == pkg
	})

	key := model.PackageKey(pkg, user)
	entry, ok := c.mem.get(key)
	if !ok {
		entry = model.NewCacheEntry()
	}
	if title = model.NormalizeLabel(title); title != "" {
		entry.Title = title
		entry.ContentDescription = c.registry.UserBadgedLabel(title, user)
	}
	if bm != nil {
		entry.Bitmap = bm
	}
	if entry.HasTitle() && entry.Bitmap.CanPersist() {
		c.mem.put(key, entry)
	}
}
