package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/store"
)

// AssertionError is returned when an assertion fails. It carries the trace
// for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}
	return buf.String()
}

// evaluate runs every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertStoreRows:
			err = h.assertStoreRows(ctx, a)
		case AssertRowExists, AssertRowAbsent:
			err = h.assertRow(ctx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertTraceContains checks for a step of the given op whose result
// matches a.Result (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Op == a.Op && matchSubset(a.Result, event.Result) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with result %v", a.Op, a.Result),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of a.Ops appear in
// that order. Other steps may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that op ran exactly a.Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertStoreRows(ctx context.Context, a Assertion) error {
	n, err := h.count(ctx, a.Prefix)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if n != a.Count {
		desc := "rows"
		if a.Prefix != "" {
			desc = fmt.Sprintf("rows with prefix %q", a.Prefix)
		}
		return &AssertionError{
			Type:     AssertStoreRows,
			Expected: fmt.Sprintf("%d %s", a.Count, desc),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertRow looks up the row of (component, user) and checks its presence
// and, for row_exists, the expected column values.
func (h *Harness) assertRow(ctx context.Context, a Assertion) error {
	cn, err := model.ParseComponentName(a.Component)
	if err != nil {
		return err
	}
	serial, err := h.registry.SerialNumber(model.UserHandle(a.User))
	if err != nil {
		return err
	}
	key := store.Key{Component: cn.Flatten(), User: serial}

	var row store.Row
	err = h.cache.Call(ctx, func(ctx context.Context) error {
		var err error
		row, err = h.cache.Store().Get(ctx, key, store.LowResColumns)
		return err
	})
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("read row: %w", err)
	}

	desc := fmt.Sprintf("row %s for user %d", key.Component, a.User)
	if a.Type == AssertRowAbsent {
		if found {
			return &AssertionError{Type: a.Type, Expected: "no " + desc, Actual: "row present"}
		}
		return nil
	}
	if !found {
		return &AssertionError{Type: a.Type, Expected: desc, Actual: "row not found"}
	}

	actual := rowFields(row)
	if !matchSubset(a.Expect, actual) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s with %v", desc, a.Expect),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// rowFields names the assertable columns of a row.
func rowFields(r store.Row) map[string]any {
	return map[string]any{
		"label":        r.Label,
		"version":      r.Version,
		"last_updated": r.LastUpdated,
		"system_state": r.SystemState,
		"flags":        r.Flags,
		"keywords":     r.Keywords,
	}
}

// matchSubset reports whether every key of expected is present in actual
// with an equal value. Nested maps match recursively. Values are compared
// after a JSON round trip so YAML ints and Go int64s agree.
func matchSubset(expected, actual map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	exp, ok := normalize(expected).(map[string]any)
	if !ok {
		return false
	}
	act, ok := normalize(actual).(map[string]any)
	if !ok {
		return false
	}
	return subset(exp, act)
}

func subset(expected, actual map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok {
			return false
		}
		wantMap, wantIsMap := want.(map[string]any)
		gotMap, gotIsMap := got.(map[string]any)
		if wantIsMap && gotIsMap {
			if !subset(wantMap, gotMap) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(want, got) {
			return false
		}
	}
	return true
}

func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
