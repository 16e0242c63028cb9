// Package store provides SQLite-backed durable storage for icon cache rows.
//
// The store holds one table, icons, keyed by (component, user serial). It
// supports point and bulk queries, insert-or-replace, predicate deletes and
// a full clear.
//
// # Schema versioning
//
// The schema identifier is SchemaID(release, iconPixelSize) and is kept in
// PRAGMA user_version. Any mismatch on Open (or an explicit Rebuild) drops
// and recreates the table. Rows are cheap to regenerate, so there are no
// migrations.
//
// # Projections
//
//   - LowResColumns: text and numeric columns only; icon blobs are not read
//   - HighResColumns: LowResColumns plus the icon and monochrome blobs
//   - ReconcileColumns: what the reconciliation pass needs to classify rows
//
// # Blob encoding
//
// Icon blobs are zstd-compressed at rest. The uncompressed icon is also
// fingerprinted with a sha256 OCI digest stored in icon_digest; a blob that
// fails to decompress or verify yields ErrCorruptBlob for that row only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: the cache worker is the only writer
package store
