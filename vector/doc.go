// Package vector holds the embedding primitives used by the duplicate
// store and the in-memory searcher:
//   - Embedding encoding (little-endian float32 BLOB)
//   - Cosine similarity, cosine distance and L2 distance
package vector
