// Package search provides the similarity searchers used by duplicate
// detection: the SQL searcher of the store, and an in-memory searcher that
// keeps one brute-force index per owner and media type.
package search
