package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

func deviceManifest(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(scenarioDir, "device.yaml"))
	require.NoError(t, err)
	return path
}

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace with the golden file of the same name.
func TestScenarios(t *testing.T) {
	entries, err := os.ReadDir(scenarioDir)
	require.NoError(t, err)

	ran := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == "device.yaml" || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ran++
		t.Run(strings.TrimSuffix(e.Name(), ".yaml"), func(t *testing.T) {
			s, err := LoadScenario(filepath.Join(scenarioDir, e.Name()))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
	assert.Positive(t, ran)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenarioDir, "reconcile_lifecycle.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectationIsReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_expectation",
		Description: "expects a count the device cannot produce",
		Manifest:    deviceManifest(t),
		Steps: []Step{
			{Op: OpReconcile},
			{Op: OpCount, Expect: map[string]any{"rows": 99}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] count")
	assert.Len(t, result.Trace, 2)
}

func TestRun_StepErrorIsTraced(t *testing.T) {
	s := &Scenario{
		Name:        "uninstall_unknown",
		Description: "uninstalling an unknown package fails the step",
		Manifest:    deviceManifest(t),
		Steps: []Step{
			{Op: OpUninstall, Package: "com.example.nope"},
			{Op: OpUninstall, Package: "com.example.nope", Expect: map[string]any{"error": "package not found: com.example.nope"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)
	assert.Contains(t, result.Trace[0].Error, "com.example.nope")
	require.Len(t, result.Errors, 1, "an expected error is not a failure")
	assert.Contains(t, result.Errors[0], "steps[0] uninstall")
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_assertion",
		Description: "asserts a row that was never written",
		Manifest:    deviceManifest(t),
		Steps:       []Step{{Op: OpReconcile}},
		Assertions: []Assertion{
			{Type: AssertStoreRows, Count: 7},
			{Type: AssertRowExists, Component: "com.example.mail/.Inbox", User: 10, Expect: map[string]any{"label": "Inbox"}},
			{Type: AssertRowExists, Component: "com.example.notes/.Main", User: 10},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[2]")
	assert.Contains(t, result.Errors[0], "row not found")
}

func TestRun_BadManifest(t *testing.T) {
	s := &Scenario{
		Name:        "bad_manifest",
		Description: "manifest does not exist",
		Manifest:    filepath.Join(t.TempDir(), "missing.yaml"),
		Steps:       []Step{{Op: OpReconcile}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load manifest")
}
