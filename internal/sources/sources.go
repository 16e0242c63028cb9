// Package sources holds the CachingLogic strategies for the item types the
// cache knows about: launchable activities, deep-link shortcuts and
// pre-rendered objects.
package sources

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
)

// ErrNoIcon is returned by loaders when an item carries no source image.
var ErrNoIcon = errors.New("item has no icon")

// Activity is a launchable entry point of an installed package.
type Activity struct {
	Component model.ComponentName
	User      model.UserHandle
	Label     string
	Icon      image.Image
	Instant   bool
}

// ActivityLogic caches activities.
type ActivityLogic struct {
	iconcache.DefaultLogic[*Activity]
}

func (ActivityLogic) Component(a *Activity) model.ComponentName { return a.Component }
func (ActivityLogic) User(a *Activity) model.UserHandle         { return a.User }
func (ActivityLogic) Label(a *Activity) string                  { return a.Label }

func (ActivityLogic) LoadIcon(_ context.Context, r iconcache.Renderer, a *Activity) (*model.BitmapInfo, error) {
	if a.Icon == nil {
		return nil, ErrNoIcon
	}
	return r.RenderIcon(a.Icon, a.User, a.Instant)
}

// Shortcut is a deep link published by a package. Its component is the
// package plus the shortcut ID, with a leading "." expanded the same way
// stored component names are.
type Shortcut struct {
	Package     string
	ID          string
	User        model.UserHandle
	Label       string
	Icon        image.Image
	LastChanged int64
}

// ShortcutLogic caches shortcuts. Shortcut entries are not kept in memory.
type ShortcutLogic struct {
	iconcache.DefaultLogic[*Shortcut]
}

func (ShortcutLogic) Component(s *Shortcut) model.ComponentName {
	return model.NewComponentName(s.Package, s.ID)
}

func (ShortcutLogic) User(s *Shortcut) model.UserHandle { return s.User }
func (ShortcutLogic) Label(s *Shortcut) string          { return s.Label }

func (ShortcutLogic) LoadIcon(_ context.Context, r iconcache.Renderer, s *Shortcut) (*model.BitmapInfo, error) {
	if s.Icon == nil {
		return nil, ErrNoIcon
	}
	return r.RenderIcon(s.Icon, s.User, false)
}

// LastUpdated is the later of the package update and the shortcut change.
// s is nil when reconciliation meets a row with no live shortcut.
func (ShortcutLogic) LastUpdated(s *Shortcut, info model.PackageInfo) int64 {
	if s == nil {
		return info.LastUpdateTime
	}
	return max(info.LastUpdateTime, s.LastChanged)
}

func (ShortcutLogic) AddToMemCache() bool { return false }

// Keywords lets search match a shortcut by its ID words.
func (ShortcutLogic) Keywords(s *Shortcut, _ model.SystemState) string {
	return strings.Join(strings.FieldsFunc(s.ID, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}), " ")
}

// Object is an item that already holds a rendered bitmap, such as a widget
// preview produced elsewhere.
type Object struct {
	Component model.ComponentName
	User      model.UserHandle
	Label     string
	Bitmap    *model.BitmapInfo
}

// ObjectLogic caches pre-rendered objects as-is.
type ObjectLogic struct {
	iconcache.DefaultLogic[*Object]
}

func (ObjectLogic) Component(o *Object) model.ComponentName { return o.Component }
func (ObjectLogic) User(o *Object) model.UserHandle         { return o.User }
func (ObjectLogic) Label(o *Object) string                  { return o.Label }

func (ObjectLogic) LoadIcon(_ context.Context, _ iconcache.Renderer, o *Object) (*model.BitmapInfo, error) {
	if o.Bitmap.IsNullOrLowRes() {
		return nil, ErrNoIcon
	}
	return o.Bitmap, nil
}

// Compile-time interface checks.
var (
	_ iconcache.CachingLogic[*Activity] = ActivityLogic{}
	_ iconcache.CachingLogic[*Shortcut] = ShortcutLogic{}
	_ iconcache.CachingLogic[*Object]   = ObjectLogic{}
)
