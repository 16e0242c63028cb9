package iconcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/iconcache/internal/engine"
	"github.com/roach88/iconcache/internal/iconfactory"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/store"
)

// Options configures a Cache.
type Options struct {
	// DBPath is the SQLite file backing the cache.
	DBPath string

	// ReleaseVersion and IconPixelSize together form the schema ID.
	// Changing either discards every persisted row on the next Open.
	ReleaseVersion int
	IconPixelSize  int
	IconDPI        int

	SystemState model.SystemState

	MemCache     MemCacheMode
	MemCacheSize int

	Logger     *slog.Logger
	Registerer prometheus.Registerer

	// SessionIDs tags reconciliation sessions. Default: engine.UUIDv7Generator.
	SessionIDs engine.SessionIDGenerator

	// NewIconFactory builds the renderer for a pixel size and density.
	// Default: NewFactory.
	NewIconFactory func(pixelSize, dpi int) IconFactory
}

// Deps are the collaborators a Cache consults on misses.
type Deps struct {
	Registry PackageRegistry
	Users    UserDirectory
}

// Cache is the icon and label cache. See the package documentation for the
// confinement rules.
type Cache struct {
	opts     Options
	logger   *slog.Logger
	worker   *engine.Worker
	store    *store.Store
	mem      memCache
	registry PackageRegistry
	users    UserDirectory
	metrics  *metrics
	sessions engine.SessionIDGenerator
	running  atomic.Bool

	// Worker-confined state below.
	factory      IconFactory
	iconDPI      int
	pixelSize    int
	systemState  model.SystemState
	fingerprint  string
	defaultIcons map[model.UserHandle]*model.BitmapInfo
	activeUpdate *UpdateHandler
}

// New opens the store and builds a cache. The cache does no work until
// Run is called.
func New(opts Options, deps Deps) (*Cache, error) {
	if deps.Registry == nil || deps.Users == nil {
		return nil, errors.New("iconcache: registry and user directory are required")
	}
	if opts.IconPixelSize <= 0 {
		return nil, fmt.Errorf("iconcache: icon pixel size must be positive, got %d", opts.IconPixelSize)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionIDs == nil {
		opts.SessionIDs = engine.UUIDv7Generator{}
	}
	if opts.NewIconFactory == nil {
		opts.NewIconFactory = NewFactory
	}

	mem, err := newMemCache(opts.MemCache, opts.MemCacheSize)
	if err != nil {
		return nil, fmt.Errorf("iconcache: %w", err)
	}
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("iconcache: register metrics: %w", err)
	}

	st, err := store.Open(opts.DBPath, store.SchemaID(opts.ReleaseVersion, opts.IconPixelSize))
	if err != nil {
		return nil, fmt.Errorf("iconcache: %w", err)
	}

	logger := opts.Logger.With("component", "iconcache")
	c := &Cache{
		opts:         opts,
		logger:       logger,
		worker:       engine.NewWorker("iconcache", engine.WithLogger(logger)),
		store:        st,
		mem:          mem,
		registry:     deps.Registry,
		users:        deps.Users,
		metrics:      m,
		sessions:     opts.SessionIDs,
		factory:      opts.NewIconFactory(opts.IconPixelSize, opts.IconDPI),
		iconDPI:      opts.IconDPI,
		pixelSize:    opts.IconPixelSize,
		systemState:  opts.SystemState,
		fingerprint:  opts.SystemState.Fingerprint(),
		defaultIcons: make(map[model.UserHandle]*model.BitmapInfo),
	}
	return c, nil
}

// Run drives the cache worker until ctx is cancelled or Close is called.
func (c *Cache) Run(ctx context.Context) error {
	c.running.Store(true)
	return c.worker.Run(ctx)
}

// Close stops the worker, waits for a running Run to return, and closes
// the store. Safe to call without Run.
func (c *Cache) Close() error {
	c.worker.Stop()
	if c.running.Load() {
		<-c.worker.Stopped()
	}
	return c.store.Close()
}

// Worker exposes the cache worker, e.g. to check InWorker in callers.
func (c *Cache) Worker() *engine.Worker {
	return c.worker
}

// Call runs fn on the worker and waits for the result.
func (c *Cache) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.worker.Call(ctx, fn)
}

// Post queues fn on the worker without waiting.
func (c *Cache) Post(fn func(ctx context.Context)) bool {
	return c.worker.Post(fn)
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Database     string
	MemEntries   int
	StoreRows    int
	DefaultIcons int
	SchemaID     int
	Fingerprint  string
}

// Stats reports the cache's current size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	c.worker.MustBeWorker(ctx, "Stats")
	n, err := c.store.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Database:     c.store.Path(),
		MemEntries:   c.mem.len(),
		StoreRows:    n,
		DefaultIcons: len(c.defaultIcons),
		SchemaID:     c.store.SchemaID(),
		Fingerprint:  c.fingerprint,
	}, nil
}

// Store exposes the underlying store for inspection tools.
func (c *Cache) Store() *store.Store {
	return c.store
}

// RenderIcon implements Renderer with the current icon parameters. Badges
// follow the profile: managed profiles get the work badge.
func (c *Cache) RenderIcon(src image.Image, user model.UserHandle, instant bool) (*model.BitmapInfo, error) {
	return c.factory.CreateBadgedIcon(src, c.badgeOptions(user, instant))
}

func (c *Cache) badgeOptions(user model.UserHandle, instant bool) iconfactory.BadgeOptions {
	return iconfactory.BadgeOptions{
		User:    user,
		Managed: c.users.IsManaged(user),
		Instant: instant,
	}
}

// DefaultIcon returns the synthesized placeholder for user. Built once per
// user and never persisted.
func (c *Cache) DefaultIcon(ctx context.Context, user model.UserHandle) *model.BitmapInfo {
	c.worker.MustBeWorker(ctx, "DefaultIcon")
	if bm, ok := c.defaultIcons[user]; ok {
		return bm
	}
	bm := c.factory.MakeDefaultIcon(c.badgeOptions(user, false))
	c.defaultIcons[user] = bm
	return bm
}

// IsDefaultIcon reports whether bm is the placeholder handed out for user.
func (c *Cache) IsDefaultIcon(ctx context.Context, bm *model.BitmapInfo, user model.UserHandle) bool {
	c.worker.MustBeWorker(ctx, "IsDefaultIcon")
	def, ok := c.defaultIcons[user]
	return ok && bm == def
}

// UpdateIconParameters switches to a new density and pixel size. Every
// persisted row and every memory entry is discarded.
func (c *Cache) UpdateIconParameters(ctx context.Context, dpi, pixelSize int) error {
	c.worker.MustBeWorker(ctx, "UpdateIconParameters")
	if pixelSize <= 0 {
		return fmt.Errorf("update icon parameters: pixel size must be positive, got %d", pixelSize)
	}

	c.iconDPI = dpi
	c.pixelSize = pixelSize
	c.factory = c.opts.NewIconFactory(pixelSize, dpi)
	clear(c.defaultIcons)
	c.mem.clear()

	if err := c.store.Rebuild(ctx, store.SchemaID(c.opts.ReleaseVersion, pixelSize)); err != nil {
		return fmt.Errorf("update icon parameters: %w", err)
	}
	c.logger.Info("icon parameters updated", "dpi", dpi, "pixel_size", pixelSize)
	return nil
}

// UpdateSystemState replaces the fingerprint stored with new rows. Rows
// written under another fingerprint read as misses from now on. Memory is
// cleared since labels are locale-specific.
func (c *Cache) UpdateSystemState(ctx context.Context, state model.SystemState) {
	c.worker.MustBeWorker(ctx, "UpdateSystemState")
	c.systemState = state
	c.fingerprint = state.Fingerprint()
	c.mem.clear()
	c.logger.Info("system state updated", "fingerprint", c.fingerprint)
}

// SystemState returns the current system state.
func (c *Cache) SystemState(ctx context.Context) model.SystemState {
	c.worker.MustBeWorker(ctx, "SystemState")
	return c.systemState
}
