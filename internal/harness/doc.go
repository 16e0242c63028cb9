// Package harness runs YAML scenarios against a real icon cache.
//
// A scenario names a device manifest and a list of steps: lookups,
// reconciliation passes, package changes on the device, and maintenance
// operations. Each step runs on the cache worker, exactly as the CLI would
// drive it, and is recorded as a TraceEvent carrying the step's arguments
// and what the cache returned. After the last step the assertions are
// evaluated against the trace and the final contents of the store.
//
// Reconciliation steps wait for the session's incremental tasks to drain
// before finishing, so every step observes a settled store.
//
// Everything that would vary between runs is pinned: the database lives in
// memory, session tags come from testutil.SessionTags and steps are
// numbered by testutil.Sequence. The trace can therefore be compared
// byte-for-byte against a golden file; see RunWithGolden.
package harness
