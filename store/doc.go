// Package store implements the SQLite-backed collaborators of the duplicate
// detection pipeline:
//   - asset source: lazy enumeration and point lookups for detection
//   - similarity search: range queries with the vec_cosine_distance function
//   - duplicate store: atomic merge, detach, group listing and deletion
//
// Group membership lives only on the asset row (assets.duplicate_id), so a
// group and its members cannot disagree. Triggers append every membership
// change to duplicate_log and bump a per-owner embedding sequence that
// in-memory indexes use for invalidation.
package store
