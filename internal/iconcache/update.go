package iconcache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/iconcache/internal/model"
	"github.com/roach88/iconcache/internal/queryir"
	"github.com/roach88/iconcache/internal/store"
)

// filterMode decides how a user group's scan merges into the session's
// delete set.
type filterMode int

const (
	// setInvalid: the first group marks orphans and stale rows without a
	// live item for deletion.
	setInvalid filterMode = iota
	// clearValid: later groups only rescue rows they found up to date or
	// are about to re-render.
	clearValid
)

// UpdateOption configures an UpdateHandler.
type UpdateOption func(*UpdateHandler)

// WithIgnoredPackages keeps the rows of pkgs for user even when the
// packages are not installed, e.g. while they are being restored.
func WithIgnoredPackages(user model.UserHandle, pkgs ...string) UpdateOption {
	return func(h *UpdateHandler) {
		set, ok := h.ignored[user]
		if !ok {
			set = make(map[string]struct{})
			h.ignored[user] = set
		}
		for _, p := range pkgs {
			set[p] = struct{}{}
		}
	}
}

// WithCompletion registers fn to run on the worker each time the session's
// scheduled work drains.
func WithCompletion(fn func()) UpdateOption {
	return func(h *UpdateHandler) {
		h.onComplete = fn
	}
}

// OnUpdated is told which packages had rows re-rendered for user.
type OnUpdated func(pkgs []string, user model.UserHandle)

// ScanResult summarises one UpdateIcons call.
type ScanResult struct {
	Updates int `json:"updates"` // stale rows queued for re-rendering
	Inserts int `json:"inserts"` // live items with no row, queued for rendering
	Deletes int `json:"deletes"` // rows marked for deletion in the session so far
}

// UpdateHandler reconciles stored rows with the installed set. One handler
// is one session: creating a new handler cancels the tasks still queued by
// the previous one.
//
// Call UpdateIcons once per item source, then Finish.
type UpdateHandler struct {
	cache    *Cache
	tag      string
	pkgInfos map[string]model.PackageInfo
	ignored  map[model.UserHandle]map[string]struct{}
	toDelete map[int64]struct{}
	mode     filterMode

	onComplete func()

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// NewUpdateHandler starts a reconciliation session. Must run on the worker.
func NewUpdateHandler(ctx context.Context, c *Cache, opts ...UpdateOption) (*UpdateHandler, error) {
	c.worker.MustBeWorker(ctx, "NewUpdateHandler")

	if prev := c.activeUpdate; prev != nil {
		c.worker.Cancel(prev.tag)
		prev.abandon()
	}

	pkgs, err := c.registry.InstalledPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot installed packages: %w", err)
	}

	h := &UpdateHandler{
		cache:    c,
		tag:      c.sessions.Generate(),
		pkgInfos: make(map[string]model.PackageInfo, len(pkgs)),
		ignored:  make(map[model.UserHandle]map[string]struct{}),
		toDelete: make(map[int64]struct{}),
		mode:     setInvalid,
		idle:     make(chan struct{}),
	}
	close(h.idle)
	for _, p := range pkgs {
		h.pkgInfos[p.Name] = p
	}
	for _, opt := range opts {
		opt(h)
	}

	c.activeUpdate = h
	c.logger.Debug("update session started", "session", h.tag, "packages", len(pkgs))
	return h, nil
}

// Session returns the tag carried by this session's tasks.
func (h *UpdateHandler) Session() string {
	return h.tag
}

// Done returns a channel that is closed while no scheduled work is pending.
// Each UpdateIcons call that schedules work replaces the channel.
func (h *UpdateHandler) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.idle
}

// Pending reports how many incremental tasks are still outstanding.
func (h *UpdateHandler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

func (h *UpdateHandler) taskStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == 0 {
		h.idle = make(chan struct{})
	}
	h.pending++
}

func (h *UpdateHandler) taskFinished() {
	h.mu.Lock()
	h.pending--
	drained := h.pending == 0
	if drained {
		close(h.idle)
	}
	h.mu.Unlock()

	if drained && h.onComplete != nil {
		h.onComplete()
	}
}

// abandon releases waiters of a superseded session.
func (h *UpdateHandler) abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending > 0 {
		h.pending = 0
		close(h.idle)
	}
}

// rowMarks is the part of a scan that feeds the session's delete set.
type rowMarks struct {
	malformed []int64
	invalid   []staleRow
	valid     []int64
	// rewritten rows are queued for re-rendering. A replace gives the row
	// a new rowid and may reuse the old one, so they must not stay marked.
	rewritten []int64
}

// userScan is the outcome of classifying one user's rows. It is computed
// without touching session state and merged afterwards.
type userScan[T any] struct {
	rowMarks
	toUpdate []T
	toAdd    []T
}

type staleRow struct {
	id        int64
	component model.ComponentName
}

// UpdateIcons reconciles the rows of every user present in items. Items
// that need rendering are queued as incremental tasks on the worker;
// onUpdated (may be nil) hears about re-rendered packages.
func UpdateIcons[T any](
	ctx context.Context,
	h *UpdateHandler,
	items []T,
	logic CachingLogic[T],
	onUpdated OnUpdated,
) (ScanResult, error) {
	c := h.cache
	c.worker.MustBeWorker(ctx, "UpdateIcons")

	byUser := make(map[model.UserHandle]map[model.ComponentName]T)
	for _, item := range items {
		u := logic.User(item)
		if byUser[u] == nil {
			byUser[u] = make(map[model.ComponentName]T)
		}
		byUser[u][logic.Component(item)] = item
	}

	var result ScanResult
	for _, user := range slices.Sorted(maps.Keys(byUser)) {
		serial, err := c.users.SerialNumber(user)
		if err != nil {
			c.logger.Warn("skip reconciliation for unknown user", "user", user, "error", err)
			continue
		}

		scan, err := scanUser(ctx, h, user, serial, byUser[user], logic)
		if err != nil {
			return result, err
		}
		h.merge(user, scan.rowMarks)

		result.Updates += len(scan.toUpdate)
		result.Inserts += len(scan.toAdd)

		if len(scan.toUpdate) > 0 || len(scan.toAdd) > 0 {
			h.schedule(&serializedTask[T]{
				handler:   h,
				logic:     logic,
				user:      user,
				serial:    serial,
				toUpdate:  scan.toUpdate,
				toAdd:     scan.toAdd,
				updated:   make(map[string]struct{}),
				onUpdated: onUpdated,
			})
		}
	}

	result.Deletes = len(h.toDelete)
	c.metrics.reconcile.WithLabelValues(kindUpdate).Add(float64(result.Updates))
	c.metrics.reconcile.WithLabelValues(kindInsert).Add(float64(result.Inserts))
	h.mode = clearValid
	return result, nil
}

// scanUser streams the stored rows of one user and classifies them against
// the live items and the package snapshot.
func scanUser[T any](
	ctx context.Context,
	h *UpdateHandler,
	user model.UserHandle,
	serial int64,
	live map[model.ComponentName]T,
	logic CachingLogic[T],
) (userScan[T], error) {
	c := h.cache
	remaining := maps.Clone(live)
	ignored := h.ignored[user]

	var scan userScan[T]
	rows, err := c.store.Query(ctx, queryir.Select{
		Columns: store.ReconcileColumns,
		Filter:  queryir.Eq(store.ColUser, serial),
	})
	if err != nil {
		return scan, fmt.Errorf("scan icons for user %d: %w", user, err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := rows.Row()
		if err != nil {
			if row.RowID == 0 {
				c.logger.Warn("skip unreadable row", "user", user, "error", err)
				continue
			}
			scan.malformed = append(scan.malformed, row.RowID)
			continue
		}
		cn, err := model.ParseComponentName(row.Component)
		if err != nil {
			scan.malformed = append(scan.malformed, row.RowID)
			continue
		}

		info, installed := h.pkgInfos[cn.Package]
		if !installed {
			if _, skip := ignored[cn.Package]; !skip {
				scan.invalid = append(scan.invalid, staleRow{id: row.RowID, component: cn})
			}
			continue
		}
		if info.DataOnly {
			continue
		}

		item, have := remaining[cn]
		delete(remaining, cn)

		if row.Version == info.VersionCode &&
			row.LastUpdated == logic.LastUpdated(item, info) &&
			row.SystemState == c.fingerprint {
			scan.valid = append(scan.valid, row.RowID)
			continue
		}
		if have {
			scan.toUpdate = append(scan.toUpdate, item)
			scan.rewritten = append(scan.rewritten, row.RowID)
		} else {
			scan.invalid = append(scan.invalid, staleRow{id: row.RowID, component: cn})
		}
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("row scan ended early", "user", user, "error", err)
	}

	for _, cn := range slices.SortedFunc(maps.Keys(remaining), compareComponents) {
		scan.toAdd = append(scan.toAdd, remaining[cn])
	}
	return scan, nil
}

// merge folds one user's row marks into the session according to the
// current filter mode.
func (h *UpdateHandler) merge(user model.UserHandle, marks rowMarks) {
	for _, id := range marks.malformed {
		h.toDelete[id] = struct{}{}
	}
	switch h.mode {
	case setInvalid:
		for _, r := range marks.invalid {
			h.toDelete[r.id] = struct{}{}
			h.cache.mem.remove(model.NewComponentKey(r.component, user))
		}
	case clearValid:
		for _, id := range marks.valid {
			delete(h.toDelete, id)
		}
		for _, id := range marks.rewritten {
			delete(h.toDelete, id)
		}
	}
}

// Finish deletes every row still marked for deletion in one batch and
// returns how many were removed.
func (h *UpdateHandler) Finish(ctx context.Context) (int64, error) {
	c := h.cache
	c.worker.MustBeWorker(ctx, "Finish")

	if len(h.toDelete) == 0 {
		return 0, nil
	}
	ids := slices.Sorted(maps.Keys(h.toDelete))
	n, err := c.store.DeleteRows(ctx, ids)
	if err != nil {
		c.logger.Error("batched delete failed", "session", h.tag, "rows", len(ids), "error", err)
		return 0, err
	}
	clear(h.toDelete)
	c.metrics.storeDeletes.Add(float64(n))
	c.metrics.reconcile.WithLabelValues(kindDelete).Add(float64(n))
	c.logger.Debug("update session finished", "session", h.tag, "deleted", n)
	return n, nil
}

func compareComponents(a, b model.ComponentName) int {
	if a.Package != b.Package {
		if a.Package < b.Package {
			return -1
		}
		return 1
	}
	switch {
	case a.Class < b.Class:
		return -1
	case a.Class > b.Class:
		return 1
	}
	return 0
}
