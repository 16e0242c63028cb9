package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/iconcache/internal/registry"
)

// Scenario is one scripted run against a fresh cache.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Manifest is the device manifest. Relative paths are resolved against
	// the scenario file's directory by LoadScenario.
	Manifest string `yaml:"manifest"`

	// SessionPrefix prefixes reconciliation session tags. Default "session".
	SessionPrefix string `yaml:"session_prefix,omitempty"`

	// Icon overrides the rendering parameters. Defaults keep icons small.
	Icon IconParams `yaml:"icon,omitempty"`

	// Locales is the initial locale list. Default [en-US].
	Locales []string `yaml:"locales,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// IconParams are the factory settings a scenario runs with.
type IconParams struct {
	PixelSize int `yaml:"pixel_size,omitempty"`
	DPI       int `yaml:"dpi,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// resolve
	Component         string `yaml:"component,omitempty"`
	Shortcut          bool   `yaml:"shortcut,omitempty"`
	LowRes            bool   `yaml:"low_res,omitempty"`
	NoPackageFallback bool   `yaml:"no_package_fallback,omitempty"`

	// resolve, invalidate, forget
	User int `yaml:"user,omitempty"`

	// invalidate, uninstall, set_version
	Package string `yaml:"package,omitempty"`

	// install
	Install *registry.PackageSpec `yaml:"install,omitempty"`

	// set_version
	Version    int64 `yaml:"version,omitempty"`
	LastUpdate int64 `yaml:"last_update,omitempty"`

	// rebuild
	PixelSize int `yaml:"pixel_size,omitempty"`
	DPI       int `yaml:"dpi,omitempty"`

	// set_locale
	Locales []string `yaml:"locales,omitempty"`

	// count
	Prefix string `yaml:"prefix,omitempty"`

	// Expect is matched against the step's result, subset semantics.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpResolve    = "resolve"
	OpReconcile  = "reconcile"
	OpInvalidate = "invalidate"
	OpForget     = "forget"
	OpInstall    = "install"
	OpUninstall  = "uninstall"
	OpSetVersion = "set_version"
	OpRebuild    = "rebuild"
	OpSetLocale  = "set_locale"
	OpCount      = "count"
)

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the step operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Result is a subset the step result must match (trace_contains).
	Result map[string]any `yaml:"result,omitempty"`

	// Ops is the expected relative order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is an exact occurrence or row count (trace_count, store_rows).
	Count int `yaml:"count,omitempty"`

	// Prefix narrows store_rows to components starting with it.
	Prefix string `yaml:"prefix,omitempty"`

	// Component and User select one row (row_exists, row_absent).
	Component string `yaml:"component,omitempty"`
	User      int    `yaml:"user,omitempty"`

	// Expect holds column values the selected row must have (row_exists).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoreRows     = "store_rows"
	AssertRowExists     = "row_exists"
	AssertRowAbsent     = "row_absent"
)

// LoadScenario reads a scenario file. Unknown fields are rejected and the
// manifest path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Manifest != "" && !filepath.IsAbs(s.Manifest) {
		s.Manifest = filepath.Join(filepath.Dir(path), s.Manifest)
	}
	if _, err := os.Stat(s.Manifest); err != nil {
		return nil, fmt.Errorf("invalid scenario: manifest: %w", err)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario. The manifest path is
// taken as is.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step) error {
	switch st.Op {
	case OpResolve, OpForget:
		if st.Component == "" {
			return fmt.Errorf("steps[%d]: component is required for %s", i, st.Op)
		}
	case OpInvalidate, OpUninstall:
		if st.Package == "" {
			return fmt.Errorf("steps[%d]: package is required for %s", i, st.Op)
		}
	case OpSetVersion:
		if st.Package == "" || st.Version == 0 {
			return fmt.Errorf("steps[%d]: package and version are required for set_version", i)
		}
	case OpInstall:
		if st.Install == nil {
			return fmt.Errorf("steps[%d]: install is required for install", i)
		}
	case OpRebuild:
		if st.PixelSize <= 0 {
			return fmt.Errorf("steps[%d]: pixel_size is required for rebuild", i)
		}
	case OpSetLocale:
		if len(st.Locales) == 0 {
			return fmt.Errorf("steps[%d]: locales is required for set_locale", i)
		}
	case OpReconcile, OpCount:
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
	}
	return nil
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", i)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", i)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", i)
		}
	case AssertStoreRows:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for store_rows", i)
		}
	case AssertRowExists, AssertRowAbsent:
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for %s", i, a.Type)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
