// Package asset defines the data model shared by the duplicate detection
// pipeline: assets with their scan-relevant fields, candidate matches returned
// by similarity search, duplicate groups, queued jobs and job statuses.
package asset
