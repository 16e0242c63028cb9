// Package engine implements the single worker execution context that the
// icon cache is confined to.
//
// ARCHITECTURE:
//
// Single-Consumer Task Loop:
// Every mutation of the in-memory icon map and every store access runs as a
// task on one goroutine (Worker.Run). This gives:
//   - No locking inside the cache, only at the queue boundary
//   - A total order of cache operations
//   - Fair interleaving: long jobs are split into one-item tasks that
//     re-post themselves behind whatever is already queued
//
// Task Flow:
//  1. Callers Post a task (fire and forget) or Call one (blocking handoff)
//  2. Tasks are queued FIFO, optionally with a tag
//  3. Run dequeues one task at a time and invokes it with a worker context
//  4. Cancel(tag) drops queued tasks carrying that tag before they run
//
// Confinement:
// The context handed to a task carries a marker identifying the worker.
// Code that must only run on the worker calls MustBeWorker(ctx), which
// panics with a *ConfinementError otherwise. A violation is a caller bug,
// never a runtime condition to recover from.
package engine
