package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/iconcache/internal/config"
	"github.com/roach88/iconcache/internal/iconcache"
	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/registry"
)

// session is everything a command needs: the loaded config, the device
// registry, and an open cache.
type session struct {
	opts     *RootOptions
	cfg      *config.Config
	registry *registry.Registry
	cache    *iconcache.Cache
	metrics  *prometheus.Registry
	logger   *slog.Logger
	out      *OutputFormatter
	stderr   io.Writer
}

// openSession loads config and manifest and opens the cache. Flags
// override config values.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	if opts.Manifest == "" {
		return nil, NewExitError(ExitCommandError, ErrCodeManifest, "--manifest is required")
	}
	manifest, err := registry.Load(opts.Manifest)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeManifest, "failed to load manifest", err)
	}
	reg, err := registry.New(manifest)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeManifest, "failed to load manifest", err)
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	metrics := prometheus.NewRegistry()
	cache, err := iconcache.New(cacheOptions(cfg, logger, metrics), iconcache.Deps{Registry: reg, Users: reg})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeDatabase, "failed to open cache", err)
	}
	logger.Debug("cache opened", "db", cfg.Database, "schema", cache.Store().SchemaID())

	return &session{
		opts:     opts,
		cfg:      cfg,
		registry: reg,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		out:      &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
		stderr:   cmd.ErrOrStderr(),
	}, nil
}

func cacheOptions(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) iconcache.Options {
	return iconcache.Options{
		DBPath:         cfg.Database,
		ReleaseVersion: cfg.ReleaseVersion,
		IconPixelSize:  cfg.Icon.PixelSize,
		IconDPI:        cfg.Icon.DPI,
		SystemState: model.SystemState{
			Locales:         cfg.System.Locales,
			PlatformVersion: cfg.System.PlatformVersion,
		},
		MemCache:     iconcache.MemCacheMode(cfg.MemCache.Mode),
		MemCacheSize: cfg.MemCache.Size,
		Logger:       logger,
		Registerer:   reg,
	}
}

// ignoreOptions turns the config's ignore rules into handler options.
func (s *session) ignoreOptions() []iconcache.UpdateOption {
	var opts []iconcache.UpdateOption
	for _, rule := range s.cfg.IgnorePackages {
		opts = append(opts, iconcache.WithIgnoredPackages(model.UserHandle(rule.User), rule.Packages...))
	}
	return opts
}

// run drives the cache worker while fn executes on its own goroutine.
// fn hands work to the worker with s.cache.Call. The worker stops when fn
// returns or the process is interrupted.
func (s *session) run(parent context.Context, fn func(ctx context.Context) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.cache.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

// close releases the cache and optionally prints metrics.
func (s *session) close() {
	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing cache", "error", err)
	}
	if s.opts.Metrics {
		if err := writeMetrics(s.stderr, s.metrics); err != nil {
			s.logger.Error("error gathering metrics", "error", err)
		}
	}
}

// writeMetrics prints every counter sample as "name{labels} value".
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), formatLabels(m.GetLabel()), m.GetCounter().GetValue())
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

// withSession opens a session, runs fn under it and reports errors in the
// configured format.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		_ = out.Error(err)
		return err
	}
	defer s.close()

	err = s.run(cmd.Context(), func(ctx context.Context) error {
		return fn(ctx, s)
	})
	if err != nil {
		_ = s.out.Error(err)
	}
	return err
}
