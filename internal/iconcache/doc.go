// Package iconcache implements the persistent icon and label cache.
//
// A Cache maps (component, user) to a model.CacheEntry. Lookups go through
// three layers:
//
//  1. the in-memory map (map, bounded LRU, or none)
//  2. the SQLite store, filtered by the current system-state fingerprint
//  3. the caller's CachingLogic, which loads the icon from its source
//
// and fall back to the package-level entry and finally to a synthesized
// per-user default icon, so Resolve never fails.
//
// # Confinement
//
// Every operation that touches the memory map or the store must run on the
// cache's worker (see engine.Worker). Such operations take the task context
// and panic with *engine.ConfinementError when called from anywhere else.
// Use Cache.Call to hand work to the worker from other goroutines:
//
//	err := c.Call(ctx, func(ctx context.Context) error {
//	    entry := iconcache.Resolve(ctx, c, cn, user, supplier, logic, iconcache.LookupFlags{})
//	    ...
//	    return nil
//	})
//
// # Reconciliation
//
// An UpdateHandler diffs the stored rows of each user against the live set
// of installed items. Stale rows are re-rendered, new items inserted and
// orphans deleted. Rendering happens one item per worker task so
// reconciliation never monopolizes the worker.
package iconcache
