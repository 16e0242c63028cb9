package iconcache

import (
	"context"
	"image"

	"github.com/roach88/iconcache/internal/iconfactory"
	"github.com/roach88/iconcache/internal/model"
)

// PackageRegistry is the authoritative source of installed packages.
type PackageRegistry interface {
	// PackageInfo returns metadata for pkg as installed for user. An error
	// means the package is not available for that user.
	PackageInfo(ctx context.Context, pkg string, user model.UserHandle) (model.PackageInfo, error)

	// InstalledPackages returns every package known to the device,
	// including data-only ones.
	InstalledPackages(ctx context.Context) ([]model.PackageInfo, error)

	// ApplicationIcon returns the package-level source icon.
	ApplicationIcon(ctx context.Context, pkg string, user model.UserHandle) (image.Image, error)

	// UserBadgedLabel decorates label for the given profile.
	UserBadgedLabel(label string, user model.UserHandle) string
}

// UserDirectory maps profiles to their stable serial numbers.
type UserDirectory interface {
	SerialNumber(user model.UserHandle) (int64, error)
	IsManaged(user model.UserHandle) bool
}

// IconFactory renders icons. See iconfactory.Factory.
type IconFactory interface {
	CreateBadgedIcon(src image.Image, opts iconfactory.BadgeOptions) (*model.BitmapInfo, error)
	MakeDefaultIcon(opts iconfactory.BadgeOptions) *model.BitmapInfo
}

// Renderer is what a CachingLogic uses to turn its source image into a
// cache-ready bitmap. *Cache implements it.
type Renderer interface {
	RenderIcon(src image.Image, user model.UserHandle, instant bool) (*model.BitmapInfo, error)
}

// NewFactory adapts iconfactory.New to the IconFactory constructor shape.
func NewFactory(pixelSize, dpi int) IconFactory {
	return iconfactory.New(pixelSize, dpi)
}
