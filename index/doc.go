// Package index defines the in-memory vector index contract used by the
// duplicate searcher. Implementations live in subpackages.
package index
