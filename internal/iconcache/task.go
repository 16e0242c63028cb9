package iconcache

import (
	"context"
	"maps"
	"slices"

	"github.com/roach88/iconcache/internal/model"
)

// stepper is one unit of incremental work: each call handles a single item
// and reports whether more remain.
type stepper interface {
	step(ctx context.Context) bool
}

// serializedTask renders the items of one user one at a time. Updates are
// drained first, then inserts, each most-recently-queued first.
type serializedTask[T any] struct {
	handler   *UpdateHandler
	logic     CachingLogic[T]
	user      model.UserHandle
	serial    int64
	toUpdate  []T
	toAdd     []T
	updated   map[string]struct{}
	onUpdated OnUpdated
}

func (t *serializedTask[T]) step(ctx context.Context) bool {
	c := t.handler.cache

	if n := len(t.toUpdate); n > 0 {
		item := t.toUpdate[n-1]
		t.toUpdate = t.toUpdate[:n-1]

		pkg := t.logic.Component(item).Package
		AddIconToDBAndMemCache(ctx, c, item, t.logic, t.handler.pkgInfos[pkg], t.serial, true)
		t.updated[pkg] = struct{}{}

		if len(t.toUpdate) == 0 && t.onUpdated != nil {
			t.onUpdated(slices.Sorted(maps.Keys(t.updated)), t.user)
		}
		return len(t.toUpdate) > 0 || len(t.toAdd) > 0
	}

	if n := len(t.toAdd); n > 0 {
		item := t.toAdd[n-1]
		t.toAdd = t.toAdd[:n-1]

		// Items whose package is missing from the snapshot are skipped.
		if info, ok := t.handler.pkgInfos[t.logic.Component(item).Package]; ok {
			AddIconToDBAndMemCache(ctx, c, item, t.logic, info, t.serial, false)
		}
	}
	return len(t.toAdd) > 0
}

// schedule queues s under the session tag. After each step the task goes
// to the back of the worker queue so other work can interleave.
func (h *UpdateHandler) schedule(s stepper) {
	h.taskStarted()
	var run func(ctx context.Context)
	run = func(ctx context.Context) {
		if s.step(ctx) {
			if h.cache.worker.PostTagged(h.tag, run) {
				return
			}
		}
		h.taskFinished()
	}
	if !h.cache.worker.PostTagged(h.tag, run) {
		h.taskFinished()
	}
}
