package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one reconcile
manifest: device.yaml
steps:
  - op: reconcile
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "device.yaml", s.Manifest)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, OpReconcile, s.Steps[0].Op)
}

func TestParseScenario_InstallStep(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: install
description: installs a package
manifest: device.yaml
steps:
  - op: install
    install:
      name: com.example.maps
      label: Maps
      version: 2
      icon: {color: "#00aa00"}
      activities:
        - {class: .Main, label: Maps}
`))
	require.NoError(t, err)
	require.NotNil(t, s.Steps[0].Install)
	assert.Equal(t, "com.example.maps", s.Steps[0].Install.Name)
	assert.Equal(t, int64(2), s.Steps[0].Install.Version)
	require.Len(t, s.Steps[0].Install.Activities, 1)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nmanifest: m\nsteps: [{op: reconcile}]", "name is required"},
		{"missing description", "name: n\nmanifest: m\nsteps: [{op: reconcile}]", "description is required"},
		{"missing manifest", "name: n\ndescription: d\nsteps: [{op: reconcile}]", "manifest is required"},
		{"no steps", "name: n\ndescription: d\nmanifest: m", "steps list is required"},
		{"unknown op", "name: n\ndescription: d\nmanifest: m\nsteps: [{op: explode}]", `unknown op "explode"`},
		{"resolve without component", "name: n\ndescription: d\nmanifest: m\nsteps: [{op: resolve}]", "component is required"},
		{"rebuild without size", "name: n\ndescription: d\nmanifest: m\nsteps: [{op: rebuild}]", "pixel_size is required"},
		{"set_version without version", "name: n\ndescription: d\nmanifest: m\nsteps: [{op: set_version, package: p}]", "package and version are required"},
		{
			"unknown assertion",
			"name: n\ndescription: d\nmanifest: m\nsteps: [{op: reconcile}]\nassertions: [{type: vibes}]",
			`unknown assertion type "vibes"`,
		},
		{
			"row assertion without component",
			"name: n\ndescription: d\nmanifest: m\nsteps: [{op: reconcile}]\nassertions: [{type: row_exists}]",
			"component is required for row_exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesManifestRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device.yaml"), []byte("users: [{id: 0, serial: 0}]\n"), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "device.yaml"), s.Manifest)
}

func TestLoadScenario_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest")
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
