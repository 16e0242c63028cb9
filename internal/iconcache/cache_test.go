package iconcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iconcache/internal/engine"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/store"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{IconPixelSize: 32, DBPath: t.TempDir() + "/x.db"}, Deps{})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownMemCacheMode(t *testing.T) {
	reg := newFakeRegistry()
	_, err := New(Options{IconPixelSize: 32, DBPath: t.TempDir() + "/x.db", MemCache: "disk"}, Deps{Registry: reg, Users: reg})
	assert.ErrorContains(t, err, "unknown memory cache mode")
}

func TestResolve_EmptyStoreNoPackageYieldsDefaultIcon(t *testing.T) {
	c := createTestCache(t, newFakeRegistry())
	logic := newTestLogic()

	onWorker(t, c, func(ctx context.Context) {
		cn := model.NewComponentName("com.missing", ".Main")
		entry := Resolve(ctx, c, cn, 0, supply(nil), logic, LookupFlags{UsePackageIcon: true, UsePackageTitle: true})

		require.NotNil(t, entry.Bitmap)
		assert.True(t, c.IsDefaultIcon(ctx, entry.Bitmap, 0))
		assert.Empty(t, entry.Title)
		assert.Equal(t, 0, *logic.loads)
	})
}

func TestResolve_LoadsPersistsAndCaches(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Inbox", 0, "Inbox")

	onWorker(t, c, func(ctx context.Context) {
		first := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.Equal(t, "Inbox", first.Title)
		assert.False(t, first.Bitmap.IsNullOrLowRes())
		assert.False(t, c.IsDefaultIcon(ctx, first.Bitmap, 0))

		second := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.Same(t, first, second, "memory hit returns the cached entry")
		assert.Equal(t, 1, *logic.loads)

		row, err := c.store.Get(ctx, store.Key{Component: "com.mail/.Inbox", User: 1}, store.HighResColumns)
		require.NoError(t, err)
		assert.Equal(t, "Inbox", row.Label)
		assert.Equal(t, int64(1), row.Version)
		assert.Equal(t, int64(100), row.LastUpdated)
		assert.Equal(t, "en-US,34", row.SystemState)
		assert.Equal(t, first.Bitmap.Icon, row.Icon)
	})
}

func TestResolve_InvalidateReadsBackFromStore(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Inbox", 0, "Inbox")

	onWorker(t, c, func(ctx context.Context) {
		first := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		c.Invalidate(ctx, item.cn, 0)

		second := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.NotSame(t, first, second)
		assert.Equal(t, first.Title, second.Title)
		assert.Equal(t, first.Bitmap.Icon, second.Bitmap.Icon)
		assert.Equal(t, first.Bitmap.Color, second.Bitmap.Color)
		assert.Equal(t, 1, *logic.loads, "second read is served by the store")
	})
}

func TestResolve_LowResThenFull(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Inbox", 0, "Inbox")

	onWorker(t, c, func(ctx context.Context) {
		full := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		c.Invalidate(ctx, item.cn, 0)

		low := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{UseLowRes: true})
		assert.True(t, low.Bitmap.IsLowRes())
		assert.Equal(t, full.Bitmap.Color, low.Bitmap.Color)
		assert.Equal(t, "Inbox", low.Title)

		upgraded := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.False(t, upgraded.Bitmap.IsLowRes())
		assert.Equal(t, full.Bitmap.Icon, upgraded.Bitmap.Icon)
		assert.Equal(t, 1, *logic.loads)
	})
}

func TestResolve_OtherSystemStateIsMiss(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Inbox", 0, "Inbox")

	onWorker(t, c, func(ctx context.Context) {
		Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		c.UpdateSystemState(ctx, model.SystemState{Locales: []string{"fr-FR"}, PlatformVersion: 34})

		Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.Equal(t, 2, *logic.loads)
	})
}

func TestResolve_FallsBackToPackageEntry(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	cn := model.NewComponentName("com.mail", ".Gone")

	onWorker(t, c, func(ctx context.Context) {
		entry := Resolve(ctx, c, cn, 0, supply(nil), logic, LookupFlags{UsePackageIcon: true})
		assert.Equal(t, "com.mail app", entry.Title)
		assert.False(t, c.IsDefaultIcon(ctx, entry.Bitmap, 0))

		n, err := c.store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "package entry is persisted")
	})
}

func TestResolve_FailedLoadUsesDefaultAndLabel(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Broken", 0, "Broken")
	item.icon = nil

	onWorker(t, c, func(ctx context.Context) {
		entry := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.True(t, c.IsDefaultIcon(ctx, entry.Bitmap, 0))
		assert.Equal(t, "Broken", entry.Title)
	})
}

func TestResolve_NoMemCacheLogicSkipsMemory(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	logic.noMem = true
	item := newItem("com.mail", "compose", 0, "Compose")

	onWorker(t, c, func(ctx context.Context) {
		first := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		second := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.NotSame(t, first, second)
		assert.Equal(t, 1, *logic.loads)
	})
}

func TestResolve_PanicsOffWorker(t *testing.T) {
	c := createTestCache(t, newFakeRegistry())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		var ce *engine.ConfinementError
		assert.ErrorAs(t, r.(error), &ce)
	}()
	Resolve(context.Background(), c, model.NewComponentName("a", ".B"), 0, supply(nil), newTestLogic(), LookupFlags{})
}

func TestCall_PropagatesConfinementPanic(t *testing.T) {
	c := createTestCache(t, newFakeRegistry())

	assert.Panics(t, func() {
		_ = c.Call(context.Background(), func(context.Context) error {
			c.Invalidate(context.Background(), model.NewComponentName("a", ".B"), 0)
			return nil
		})
	})
}

func TestUpdateIconParameters_ForcesStoreMiss(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	item := newItem("com.mail", ".Inbox", 0, "Inbox")

	onWorker(t, c, func(ctx context.Context) {
		before := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		oldDefault := c.DefaultIcon(ctx, 0)

		require.NoError(t, c.UpdateIconParameters(ctx, 320, 48))

		stats, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.StoreRows)
		assert.Equal(t, 0, stats.MemEntries)
		assert.Equal(t, store.SchemaID(testRelease, 48), stats.SchemaID)
		assert.Equal(t, "icons.db", filepath.Base(stats.Database))
		assert.NotSame(t, oldDefault, c.DefaultIcon(ctx, 0))

		after := Resolve(ctx, c, item.cn, 0, supply(item), logic, LookupFlags{})
		assert.Equal(t, 2, *logic.loads)
		assert.NotEqual(t, before.Bitmap.Icon, after.Bitmap.Icon)
	})
}

func TestInvalidatePackage_RemovesRowsAndMemory(t *testing.T) {
	reg := newFakeRegistry(testPackage("com.mail", 1, 100), testPackage("com.mailer", 1, 100))
	c := createTestCache(t, reg)
	logic := newTestLogic()
	inbox := newItem("com.mail", ".Inbox", 0, "Inbox")
	outbox := newItem("com.mail", ".Outbox", 0, "Outbox")
	other := newItem("com.mailer", ".Main", 0, "Mailer")

	onWorker(t, c, func(ctx context.Context) {
		for _, it := range []*testItem{inbox, outbox, other} {
			Resolve(ctx, c, it.cn, 0, supply(it), logic, LookupFlags{})
		}

		n, err := c.InvalidatePackage(ctx, "com.mail", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		left, err := c.store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, left, "prefix match must not catch com.mailer")

		Resolve(ctx, c, inbox.cn, 0, supply(inbox), logic, LookupFlags{})
		Resolve(ctx, c, other.cn, 0, supply(other), logic, LookupFlags{})
		assert.Equal(t, 4, *logic.loads)
	})
}

func TestCachePackageInstallInfo_SeedsPackageEntry(t *testing.T) {
	c := createTestCache(t, newFakeRegistry())
	logic := newTestLogic()

	onWorker(t, c, func(ctx context.Context) {
		bm := &model.BitmapInfo{Icon: c.DefaultIcon(ctx, 0).Icon, Color: 0x112233}
		c.CachePackageInstallInfo(ctx, "com.new", 0, bm, "New App")

		entry := Resolve(ctx, c, model.NewComponentName("com.new", ".Main"), 0, supply(nil), logic,
			LookupFlags{UsePackageIcon: true})
		assert.Equal(t, "New App", entry.Title)
		assert.Same(t, bm, entry.Bitmap)
	})
}

func TestDefaultIcon_MemoisedPerUser(t *testing.T) {
	reg := newFakeRegistry()
	reg.managed[10] = true
	c := createTestCache(t, reg)

	onWorker(t, c, func(ctx context.Context) {
		owner := c.DefaultIcon(ctx, 0)
		work := c.DefaultIcon(ctx, 10)
		assert.Same(t, owner, c.DefaultIcon(ctx, 0))
		assert.NotSame(t, owner, work)
		assert.NotEqual(t, owner.Icon, work.Icon, "managed profile icon carries a badge")
		assert.False(t, c.IsDefaultIcon(ctx, owner, 10))
	})
}

func TestClose_WithoutRun(t *testing.T) {
	reg := newFakeRegistry()
	c, err := New(Options{DBPath: t.TempDir() + "/icons.db", IconPixelSize: 32}, Deps{Registry: reg, Users: reg})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
