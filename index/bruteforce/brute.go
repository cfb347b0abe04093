package bruteforce

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/sqlite-dedup/index"
)

// Index is a simple brute-force vector index implementing cosine similarity.
type Index struct {
	ids  []string
	vecs [][]float32
	dim  int
	mags []float64
}

var _ index.Index = (*Index)(nil)

// New builds an index from ids and vectors.
func New(ids []string, vectors [][]float32) (*Index, error) {
	i := &Index{}
	if err := i.build(ids, vectors); err != nil {
		return nil, err
	}
	return i, nil
}

// build loads ids and vectors and precomputes magnitudes.
func (i *Index) build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("bruteforce: inconsistent vector dims %d vs %d", len(vectors[j]), dim)
		}
	}
	mags := make([]float64, len(vectors))
	for j := range vectors {
		mags[j] = magnitude(vectors[j])
	}
	i.ids = append([]string(nil), ids...)
	i.vecs = append([][]float32(nil), vectors...)
	i.dim = dim
	i.mags = mags
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

type scored struct {
	idx   int
	score float64
}

// similarities scores every entry against query; zero-magnitude entries and
// NaN scores are dropped.
func (i *Index) similarities(query []float32) ([]scored, error) {
	if i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	qm := magnitude(query)
	if qm == 0 {
		return nil, nil
	}
	out := make([]scored, 0, len(i.vecs))
	for j := range i.vecs {
		if i.mags[j] == 0 {
			continue
		}
		s := dot(query, i.vecs[j]) / (qm * i.mags[j])
		if math.IsNaN(s) {
			continue
		}
		out = append(out, scored{idx: j, score: s})
	}
	return out, nil
}

// Range returns entries within maxDistance (1 - cosine similarity) of query.
func (i *Index) Range(query []float32, maxDistance float64, limit int) ([]string, []float64, error) {
	scoreds, err := i.similarities(query)
	if err != nil || len(scoreds) == 0 {
		return nil, nil, err
	}
	within := scoreds[:0]
	for _, s := range scoreds {
		s.score = math.Max(0, 1-s.score)
		if s.score <= maxDistance {
			within = append(within, s)
		}
	}
	sort.Slice(within, func(a, b int) bool {
		if within[a].score != within[b].score {
			return within[a].score < within[b].score
		}
		return i.ids[within[a].idx] < i.ids[within[b].idx]
	})
	if limit > 0 && len(within) > limit {
		within = within[:limit]
	}
	ids := make([]string, len(within))
	distances := make([]float64, len(within))
	for n, s := range within {
		ids[n] = i.ids[s.idx]
		distances[n] = s.score
	}
	return ids, distances, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
