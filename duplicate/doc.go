// Package duplicate implements near-duplicate detection: the scan-all job
// that fans out per-asset work, the scan-one job that searches for similar
// assets, and the cluster merge that folds matches into one group.
//
// The package owns no storage. Assets, similarity search, group membership,
// the job queue and feature flags are reached through the interfaces in
// this package, and every membership change goes through one atomic store
// call so concurrent and repeated jobs converge on the same groups.
package duplicate
