package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/index"
	"github.com/viant/sqlite-dedup/index/bruteforce"
	"github.com/viant/sqlite-dedup/logging"
	"github.com/viant/sqlite-dedup/store"
)

const (
	// BackendSQL evaluates the distance inside SQLite.
	BackendSQL = "sql"
	// BackendIndex answers from cached in-memory indexes.
	BackendIndex = "index"
)

// Searcher finds near-duplicate candidates for one asset.
type Searcher interface {
	SearchDuplicates(ctx context.Context, query asset.SearchQuery) ([]asset.Match, error)
}

// Loader supplies the data an in-memory index is built from.
type Loader interface {
	Embeddings(ctx context.Context, ownerID string, typ asset.Type) ([]string, [][]float32, error)
	DuplicateIDs(ctx context.Context, ids []string) (map[string]*string, error)
	EmbeddingSeq(ctx context.Context, ownerID string) (int64, error)
}

var (
	_ Searcher = (*store.Store)(nil)
	_ Loader   = (*store.Store)(nil)
	_ Searcher = (*Index)(nil)
)

// New returns the searcher for backend over st.
func New(backend string, st *store.Store, logger zerolog.Logger) (Searcher, error) {
	switch backend {
	case "", BackendSQL:
		return st, nil
	case BackendIndex:
		return NewIndex(st, logger), nil
	}
	return nil, fmt.Errorf("search: unknown backend %q", backend)
}

type cacheKey struct {
	owner string
	typ   asset.Type
}

type entry struct {
	seq int64
	idx index.Index
}

// Index is an in-memory Searcher. Each (owner, type) index is rebuilt when
// the owner's embedding sequence moves; group ids are read at query time so
// merges never invalidate the cache.
type Index struct {
	loader Loader
	limit  int
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[cacheKey]*entry
}

// NewIndex creates an empty in-memory searcher.
func NewIndex(loader Loader, logger zerolog.Logger) *Index {
	return &Index{loader: loader, limit: store.SearchLimit, logger: logger, cache: map[cacheKey]*entry{}}
}

// SearchDuplicates implements Searcher.
func (x *Index) SearchDuplicates(ctx context.Context, query asset.SearchQuery) ([]asset.Match, error) {
	if len(query.Embedding) == 0 {
		return nil, nil
	}
	var matches []asset.Match
	for _, owner := range query.OwnerIDs {
		idx, err := x.index(ctx, owner, query.Type)
		if err != nil {
			return nil, err
		}
		// one extra slot for the queried asset itself
		ids, distances, err := idx.Range(query.Embedding, query.MaxDistance, x.limit+1)
		if err != nil {
			// nothing in this index is comparable, as with NULL distances in SQL
			x.logger.Warn().Err(err).
				Str(logging.KeyAssetID, query.AssetID).
				Str("owner_id", owner).
				Int("dim", len(query.Embedding)).
				Msg("skipping index with mismatched dimension")
			continue
		}
		for i, id := range ids {
			if id == query.AssetID {
				continue
			}
			matches = append(matches, asset.Match{AssetID: id, Distance: distances[i]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].AssetID < matches[j].AssetID
	})
	if len(matches) > x.limit {
		matches = matches[:x.limit]
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].AssetID
	}
	groups, err := x.loader.DuplicateIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		dup, ok := groups[m.AssetID]
		if !ok {
			// removed since the index was built
			continue
		}
		m.DuplicateID = dup
		out = append(out, m)
	}
	return out, nil
}

func (x *Index) index(ctx context.Context, owner string, typ asset.Type) (index.Index, error) {
	seq, err := x.loader.EmbeddingSeq(ctx, owner)
	if err != nil {
		return nil, err
	}
	key := cacheKey{owner: owner, typ: typ}

	x.mu.Lock()
	e, ok := x.cache[key]
	x.mu.Unlock()
	if ok && e.seq == seq {
		return e.idx, nil
	}

	ids, vecs, err := x.loader.Embeddings(ctx, owner, typ)
	if err != nil {
		return nil, err
	}
	ids, vecs = dominantDim(ids, vecs)
	idx, err := bruteforce.New(ids, vecs)
	if err != nil {
		return nil, fmt.Errorf("search: build index for %s/%s: %w", owner, typ, err)
	}
	x.mu.Lock()
	x.cache[key] = &entry{seq: seq, idx: idx}
	x.mu.Unlock()
	return idx, nil
}

// dominantDim keeps the vectors sharing the most common dimension; the
// brute-force index requires a single dimension.
func dominantDim(ids []string, vecs [][]float32) ([]string, [][]float32) {
	counts := map[int]int{}
	best := 0
	for _, v := range vecs {
		counts[len(v)]++
		if counts[len(v)] > counts[best] {
			best = len(v)
		}
	}
	if counts[best] == len(vecs) {
		return ids, vecs
	}
	outIDs := make([]string, 0, counts[best])
	outVecs := make([][]float32, 0, counts[best])
	for i, v := range vecs {
		if len(v) == best {
			outIDs = append(outIDs, ids[i])
			outVecs = append(outVecs, v)
		}
	}
	return outIDs, outVecs
}
