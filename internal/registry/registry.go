// Package registry is a manifest-backed package manager and user
// directory. It is the source of installed packages, activities and
// shortcuts for the CLI and the scenario harness.
package registry

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/sources"
)

// Sentinel errors.
var (
	ErrPackageNotFound = errors.New("package not found")
	ErrUnknownUser     = errors.New("unknown user")
)

// Registry answers package and profile queries from a Manifest. Mutators
// let tests and scenarios simulate installs, updates and removals.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	users    map[model.UserHandle]UserSpec
	packages map[string]PackageSpec
}

// New builds a registry from a validated manifest.
func New(m *Manifest) (*Registry, error) {
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	r := &Registry{
		users:    make(map[model.UserHandle]UserSpec, len(m.Users)),
		packages: make(map[string]PackageSpec, len(m.Packages)),
	}
	for _, u := range m.Users {
		r.users[model.UserHandle(u.ID)] = u
	}
	for _, p := range m.Packages {
		r.packages[p.Name] = p
	}
	return r, nil
}

// Profiles returns every user handle in ascending order.
func (r *Registry) Profiles(context.Context) []model.UserHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.UserHandle, 0, len(r.users))
	for u := range r.users {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// SerialNumber returns the stable serial of user.
func (r *Registry) SerialNumber(user model.UserHandle) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[user]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownUser, user)
	}
	return u.Serial, nil
}

// IsManaged reports whether user is a work profile.
func (r *Registry) IsManaged(user model.UserHandle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[user].Managed
}

// UserBadgedLabel prefixes labels of managed profiles with "Work".
func (r *Registry) UserBadgedLabel(label string, user model.UserHandle) string {
	if label == "" || !r.IsManaged(user) {
		return label
	}
	return "Work " + label
}

// lookup returns pkg if it is installed for user. Caller holds mu.
func (r *Registry) lookup(pkg string, user model.UserHandle) (PackageSpec, error) {
	p, ok := r.packages[pkg]
	if !ok {
		return PackageSpec{}, fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	}
	if _, ok := r.users[user]; !ok {
		return PackageSpec{}, fmt.Errorf("%w: %d", ErrUnknownUser, user)
	}
	if len(p.Users) > 0 && !slices.Contains(p.Users, int(user)) {
		return PackageSpec{}, fmt.Errorf("%w: %s for user %d", ErrPackageNotFound, pkg, user)
	}
	return p, nil
}

func (p PackageSpec) info() model.PackageInfo {
	return model.PackageInfo{
		Name:           p.Name,
		VersionCode:    p.Version,
		LastUpdateTime: p.LastUpdate,
		Label:          p.Label,
		TargetSDK:      p.TargetSDK,
		DataOnly:       p.DataOnly,
		Instant:        p.Instant,
	}
}

// PackageInfo returns metadata for pkg as installed for user.
func (r *Registry) PackageInfo(_ context.Context, pkg string, user model.UserHandle) (model.PackageInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.lookup(pkg, user)
	if err != nil {
		return model.PackageInfo{}, err
	}
	return p.info(), nil
}

// IsInstantApp reports whether pkg is an instant app for user.
func (r *Registry) IsInstantApp(ctx context.Context, pkg string, user model.UserHandle) bool {
	info, err := r.PackageInfo(ctx, pkg, user)
	return err == nil && info.Instant
}

// InstalledPackages returns every package, data-only ones included,
// sorted by name.
func (r *Registry) InstalledPackages(context.Context) ([]model.PackageInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.PackageInfo, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ApplicationIcon renders the package icon.
func (r *Registry) ApplicationIcon(_ context.Context, pkg string, user model.UserHandle) (image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.lookup(pkg, user)
	if err != nil {
		return nil, err
	}
	return renderIcon(nil, p.Icon)
}

// Activities lists the launchable activities visible to user, ordered by
// package then class. Data-only packages have none.
func (r *Registry) Activities(_ context.Context, user model.UserHandle) ([]*sources.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*sources.Activity
	for _, name := range r.sortedNames() {
		p, err := r.lookup(name, user)
		if err != nil || p.DataOnly {
			continue
		}
		for _, a := range p.Activities {
			img, err := renderIcon(a.Icon, p.Icon)
			if err != nil {
				return nil, fmt.Errorf("activity %s/%s: %w", p.Name, a.Class, err)
			}
			out = append(out, &sources.Activity{
				Component: model.NewComponentName(p.Name, a.Class),
				User:      user,
				Label:     a.Label,
				Icon:      img,
				Instant:   p.Instant,
			})
		}
	}
	return out, nil
}

// Shortcuts lists the shortcuts visible to user.
func (r *Registry) Shortcuts(_ context.Context, user model.UserHandle) ([]*sources.Shortcut, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*sources.Shortcut
	for _, name := range r.sortedNames() {
		p, err := r.lookup(name, user)
		if err != nil || p.DataOnly {
			continue
		}
		for _, s := range p.Shortcuts {
			img, err := renderIcon(s.Icon, p.Icon)
			if err != nil {
				return nil, fmt.Errorf("shortcut %s/%s: %w", p.Name, s.ID, err)
			}
			out = append(out, &sources.Shortcut{
				Package:     p.Name,
				ID:          s.ID,
				User:        user,
				Label:       s.Label,
				Icon:        img,
				LastChanged: s.LastChanged,
			})
		}
	}
	return out, nil
}

// Activity finds one activity by component.
func (r *Registry) Activity(ctx context.Context, cn model.ComponentName, user model.UserHandle) (*sources.Activity, bool) {
	acts, err := r.Activities(ctx, user)
	if err != nil {
		return nil, false
	}
	for _, a := range acts {
		if a.Component == cn {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.packages))
	for n := range r.packages {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Install adds or replaces a package.
func (r *Registry) Install(p PackageSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[int]bool, len(r.users))
	for u := range r.users {
		known[int(u)] = true
	}
	if err := p.validate(known); err != nil {
		return err
	}
	r.packages[p.Name] = p
	return nil
}

// Uninstall removes a package.
func (r *Registry) Uninstall(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packages[name]; !ok {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}
	delete(r.packages, name)
	return nil
}

// SetVersion simulates an update of an installed package.
func (r *Registry) SetVersion(name string, version, lastUpdate int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}
	p.Version = version
	p.LastUpdate = lastUpdate
	r.packages[name] = p
	return nil
}

var (
	_ iconcache.PackageRegistry = (*Registry)(nil)
	_ iconcache.UserDirectory   = (*Registry)(nil)
)
