package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/registry"
	"github.com/roach88/iconcache/internal/testutil"
)

// Scenario defaults.
const (
	defaultPixelSize       = 32
	defaultDPI             = 160
	defaultReleaseVersion  = 34
	defaultPlatformVersion = 34

	// runTimeout bounds a whole scenario so a stuck session fails the test
	// instead of hanging it.
	runTimeout = 30 * time.Second
)

// Harness holds the live objects of one scenario run.
type Harness struct {
	cache    *iconcache.Cache
	registry *registry.Registry
	seq      *testutil.Sequence
	logger   *slog.Logger

	pixelSize int
	dpi       int
}

// Run executes a scenario against a fresh in-memory cache and evaluates its
// assertions.
//
// The returned error reports a scenario that could not run at all (bad
// manifest, cache failure). Failed expectations and assertions are reported
// in Result.Errors instead.
func Run(s *Scenario) (*Result, error) {
	manifest, err := registry.Load(s.Manifest)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	reg, err := registry.New(manifest)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	h := &Harness{
		registry:  reg,
		seq:       &testutil.Sequence{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		pixelSize: orDefault(s.Icon.PixelSize, defaultPixelSize),
		dpi:       orDefault(s.Icon.DPI, defaultDPI),
	}

	locales := s.Locales
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}
	h.cache, err = iconcache.New(iconcache.Options{
		DBPath:         ":memory:",
		ReleaseVersion: defaultReleaseVersion,
		IconPixelSize:  h.pixelSize,
		IconDPI:        h.dpi,
		SystemState:    model.SystemState{Locales: locales, PlatformVersion: defaultPlatformVersion},
		MemCache:       iconcache.MemCacheMap,
		Logger:         h.logger,
		SessionIDs:     testutil.NewSessionTags(s.SessionPrefix),
	}, iconcache.Deps{Registry: reg, Users: reg})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer h.cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result := NewResult()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.cache.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if err := h.executeSteps(gctx, s.Steps, result); err != nil {
			return err
		}
		for _, msg := range h.evaluate(gctx, result, s.Assertions) {
			result.AddError(msg)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// executeSteps runs every step in order, recording a trace event for each.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, st := range steps {
		event := TraceEvent{Seq: h.seq.Next(), Op: st.Op, Args: stepArgs(st)}

		res, err := h.execute(ctx, st)
		if ctx.Err() != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, ctx.Err())
		}
		if err != nil {
			event.Error = err.Error()
			if st.Expect == nil {
				result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, st.Op, err))
			}
		}
		event.Result = res
		result.Record(event)

		if st.Expect != nil && !matchSubset(st.Expect, withError(res, event.Error)) {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %v, got %v", i, st.Op, st.Expect, withError(res, event.Error)))
		}

		h.logger.Info("step completed", "step", i, "op", st.Op, "seq", event.Seq)
	}
	return nil
}

// withError exposes a step error to expectations under the "error" key.
func withError(res map[string]any, errMsg string) map[string]any {
	if errMsg == "" {
		return res
	}
	out := make(map[string]any, len(res)+1)
	for k, v := range res {
		out[k] = v
	}
	out["error"] = errMsg
	return out
}

// stepArgs lists the fields of st that Op reads, for the trace.
func stepArgs(st Step) map[string]any {
	args := map[string]any{}
	switch st.Op {
	case OpResolve, OpForget:
		args["component"] = st.Component
		args["user"] = st.User
		if st.Shortcut {
			args["shortcut"] = true
		}
		if st.LowRes {
			args["low_res"] = true
		}
		if st.NoPackageFallback {
			args["no_package_fallback"] = true
		}
	case OpInvalidate:
		args["package"] = st.Package
		args["user"] = st.User
	case OpInstall:
		args["package"] = st.Install.Name
	case OpUninstall:
		args["package"] = st.Package
	case OpSetVersion:
		args["package"] = st.Package
		args["version"] = st.Version
		args["last_update"] = st.LastUpdate
	case OpRebuild:
		args["pixel_size"] = st.PixelSize
		if st.DPI != 0 {
			args["dpi"] = st.DPI
		}
	case OpSetLocale:
		args["locales"] = st.Locales
	case OpCount:
		if st.Prefix != "" {
			args["prefix"] = st.Prefix
		}
	}
	return args
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
