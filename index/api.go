package index

// Index defines an in-memory vector index over (id, embedding) pairs.
type Index interface {
	// Range returns every entry whose cosine distance to query is at most
	// maxDistance, ordered by ascending distance then id, and truncated to
	// limit when limit > 0.
	Range(query []float32, maxDistance float64, limit int) (ids []string, distances []float64, err error)

	// Len returns the number of indexed vectors.
	Len() int
}
