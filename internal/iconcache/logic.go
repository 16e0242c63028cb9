package iconcache

import (
	"context"

	"github.com/roach88/iconcache/internal/model"
)

// CachingLogic is the per-source-type strategy the cache delegates to.
//
// Component and User must be pure. LoadIcon may be expensive; it always
// runs on the cache worker.
type CachingLogic[T any] interface {
	Component(item T) model.ComponentName
	User(item T) model.UserHandle
	Label(item T) string
	LoadIcon(ctx context.Context, r Renderer, item T) (*model.BitmapInfo, error)

	// LastUpdated returns the timestamp persisted with the row. item may be
	// the zero value when reconciliation meets a row with no live item.
	LastUpdated(item T, info model.PackageInfo) int64

	// AddToMemCache reports whether resolved entries are retained in
	// memory. One-off lookups return false to bound memory growth.
	AddToMemCache() bool

	Keywords(item T, state model.SystemState) string
}

// DefaultLogic supplies the default behaviour for the optional parts of
// CachingLogic. Embed it by value:
//
//	type MyLogic struct {
//	    iconcache.DefaultLogic[*MyItem]
//	}
type DefaultLogic[T any] struct{}

// LastUpdated returns the package's last update time.
func (DefaultLogic[T]) LastUpdated(_ T, info model.PackageInfo) int64 {
	return info.LastUpdateTime
}

// AddToMemCache returns true.
func (DefaultLogic[T]) AddToMemCache() bool {
	return true
}

// Keywords returns no keywords.
func (DefaultLogic[T]) Keywords(T, model.SystemState) string {
	return ""
}

// LookupFlags tune Resolve.
type LookupFlags struct {
	// UseLowRes accepts a placeholder bitmap (label and color only),
	// avoiding blob decoding.
	UseLowRes bool
	// UsePackageIcon falls back to the package-level icon and label when
	// the item itself cannot be loaded.
	UsePackageIcon bool
	// UsePackageTitle falls back to the package-level label when no label
	// could be resolved for the item.
	UsePackageTitle bool
}
