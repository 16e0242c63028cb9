package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a device: its profiles and the packages installed on
// them.
type Manifest struct {
	// Users lists the profiles. User 0 is the owner.
	Users []UserSpec `yaml:"users"`

	// Packages lists everything installed, including data-only packages.
	Packages []PackageSpec `yaml:"packages"`
}

// UserSpec is one profile.
type UserSpec struct {
	ID      int    `yaml:"id"`
	Serial  int64  `yaml:"serial"`
	Name    string `yaml:"name,omitempty"`
	Managed bool   `yaml:"managed,omitempty"`
}

// PackageSpec is one installed package.
type PackageSpec struct {
	Name       string `yaml:"name"`
	Label      string `yaml:"label"`
	Version    int64  `yaml:"version"`
	LastUpdate int64  `yaml:"last_update"`
	TargetSDK  int    `yaml:"target_sdk,omitempty"`
	DataOnly   bool   `yaml:"data_only,omitempty"`
	Instant    bool   `yaml:"instant,omitempty"`

	// Icon is the package-level icon.
	Icon IconSpec `yaml:"icon"`

	// Users restricts the package to these profiles. Empty means all.
	Users []int `yaml:"users,omitempty"`

	Activities []ActivitySpec `yaml:"activities,omitempty"`
	Shortcuts  []ShortcutSpec `yaml:"shortcuts,omitempty"`
}

// ActivitySpec is a launchable entry point. Class may start with "." to
// mean "relative to the package name".
type ActivitySpec struct {
	Class string `yaml:"class"`
	Label string `yaml:"label"`

	// Icon overrides the package icon when set.
	Icon *IconSpec `yaml:"icon,omitempty"`
}

// ShortcutSpec is a deep-link shortcut.
type ShortcutSpec struct {
	ID          string    `yaml:"id"`
	Label       string    `yaml:"label"`
	LastChanged int64     `yaml:"last_changed,omitempty"`
	Icon        *IconSpec `yaml:"icon,omitempty"`
}

// IconSpec describes a synthesized icon: a solid shape in one color.
type IconSpec struct {
	// Color is "#RRGGBB".
	Color string `yaml:"color"`
	// Shape is "square" (default) or "circle".
	Shape string `yaml:"shape,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Users) == 0 {
		return fmt.Errorf("at least one user is required")
	}

	ids := make(map[int]bool, len(m.Users))
	serials := make(map[int64]bool, len(m.Users))
	for _, u := range m.Users {
		if u.ID < 0 {
			return fmt.Errorf("user %d: id must not be negative", u.ID)
		}
		if ids[u.ID] {
			return fmt.Errorf("user %d: duplicate id", u.ID)
		}
		if serials[u.Serial] {
			return fmt.Errorf("user %d: duplicate serial %d", u.ID, u.Serial)
		}
		ids[u.ID] = true
		serials[u.Serial] = true
	}

	names := make(map[string]bool, len(m.Packages))
	for i := range m.Packages {
		if err := m.Packages[i].validate(ids); err != nil {
			return err
		}
		if names[m.Packages[i].Name] {
			return fmt.Errorf("package %s: duplicate name", m.Packages[i].Name)
		}
		names[m.Packages[i].Name] = true
	}
	return nil
}

func (p *PackageSpec) validate(users map[int]bool) error {
	if p.Name == "" {
		return fmt.Errorf("package name is required")
	}
	if _, err := p.Icon.parse(); err != nil {
		return fmt.Errorf("package %s: %w", p.Name, err)
	}
	for _, u := range p.Users {
		if !users[u] {
			return fmt.Errorf("package %s: unknown user %d", p.Name, u)
		}
	}

	classes := make(map[string]bool, len(p.Activities))
	for _, a := range p.Activities {
		if a.Class == "" {
			return fmt.Errorf("package %s: activity class is required", p.Name)
		}
		if classes[a.Class] {
			return fmt.Errorf("package %s: duplicate activity %s", p.Name, a.Class)
		}
		classes[a.Class] = true
		if a.Icon != nil {
			if _, err := a.Icon.parse(); err != nil {
				return fmt.Errorf("package %s activity %s: %w", p.Name, a.Class, err)
			}
		}
	}
	for _, s := range p.Shortcuts {
		if s.ID == "" {
			return fmt.Errorf("package %s: shortcut id is required", p.Name)
		}
		if s.Icon != nil {
			if _, err := s.Icon.parse(); err != nil {
				return fmt.Errorf("package %s shortcut %s: %w", p.Name, s.ID, err)
			}
		}
	}
	return nil
}
