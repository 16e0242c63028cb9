package model

import (
	"fmt"
	"strings"
)

// ComponentName identifies a launchable unit inside a package.
type ComponentName struct {
	Package string
	Class   string
}

// NewComponentName returns the component for pkg and cls. A class starting
// with "." is expanded relative to the package.
func NewComponentName(pkg, cls string) ComponentName {
	if strings.HasPrefix(cls, ".") && cls != "." {
		cls = pkg + cls
	}
	return ComponentName{Package: pkg, Class: cls}
}

// Flatten encodes the component as "pkg/cls". When the class lives inside the
// package namespace the short "pkg/.Suffix" form is used.
func (c ComponentName) Flatten() string {
	if suffix, ok := strings.CutPrefix(c.Class, c.Package+"."); ok && suffix != "" {
		return c.Package + "/." + suffix
	}
	return c.Package + "/" + c.Class
}

// String implements fmt.Stringer.
func (c ComponentName) String() string {
	return c.Flatten()
}

// ParseComponentName decodes a string produced by Flatten. The package ends
// at the first "/"; the class keeps any later separators.
func ParseComponentName(s string) (ComponentName, error) {
	pkg, cls, ok := strings.Cut(s, "/")
	if !ok {
		return ComponentName{}, fmt.Errorf("parse component %q: missing separator", s)
	}
	if pkg == "" || cls == "" {
		return ComponentName{}, fmt.Errorf("parse component %q: empty package or class", s)
	}
	return NewComponentName(pkg, cls), nil
}

// UserHandle identifies a user profile. It is never persisted directly; the
// store uses the profile's serial number instead.
type UserHandle int

// String implements fmt.Stringer.
func (u UserHandle) String() string {
	return fmt.Sprintf("user#%d", int(u))
}

// ComponentKey is the primary key of the memory cache.
// Two keys are equal iff both fields are equal.
type ComponentKey struct {
	Component ComponentName
	User      UserHandle
}

// NewComponentKey builds a key.
func NewComponentKey(c ComponentName, user UserHandle) ComponentKey {
	return ComponentKey{Component: c, User: user}
}

// String implements fmt.Stringer.
func (k ComponentKey) String() string {
	return k.Component.Flatten() + "#" + fmt.Sprint(int(k.User))
}

// packageKeyClass is the class name of the synthetic package-default entry.
const packageKeyClass = "."

// PackageKey returns the synthetic key holding the package-level fallback
// label and icon for pkg.
func PackageKey(pkg string, user UserHandle) ComponentKey {
	return ComponentKey{
		Component: ComponentName{Package: pkg, Class: pkg + packageKeyClass},
		User:      user,
	}
}
