package duplicate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/config"
)

type mergeCall struct {
	target  string
	assets  []string
	sources []string
}

// world is an in-memory Source, Searcher and Store. Search results are
// configured per asset and carry the current group ids.
type world struct {
	mu         sync.Mutex
	assets     map[string]*asset.Asset
	order      []string
	candidates map[string][]string
	merges     []mergeCall
	clears     []string
	stamps     [][]string
	searchErr  error
	mergeErr   error
}

func newWorld() *world {
	return &world{assets: map[string]*asset.Asset{}, candidates: map[string][]string{}}
}

func (w *world) add(id, group string) *asset.Asset {
	a := &asset.Asset{ID: id, OwnerID: "u1", Type: asset.TypeImage, Visibility: asset.VisibilityNormal,
		DuplicateID: asset.Ref(group), Embedding: []float32{1, 0}}
	w.assets[id] = a
	w.order = append(w.order, id)
	return a
}

func (w *world) group(id string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.assets[id].GroupID()
}

func (w *world) mutations() int { return len(w.merges) + len(w.clears) + len(w.stamps) }

func (w *world) StreamForDetection(ctx context.Context, force bool, fn func(string) error) error {
	for _, id := range w.order {
		a := w.assets[id]
		if a.Stacked() || a.Visibility.Excluded() || len(a.Embedding) == 0 {
			continue
		}
		if !force && a.DuplicatesDetectedAt != nil {
			continue
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

func (w *world) LoadForDetection(ctx context.Context, id string) (*asset.Asset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.assets[id]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", id, asset.ErrNotFound)
	}
	cp := *a
	if a.DuplicateID != nil {
		cp.DuplicateID = asset.Ref(*a.DuplicateID)
	}
	return &cp, nil
}

func (w *world) SearchDuplicates(ctx context.Context, q asset.SearchQuery) ([]asset.Match, error) {
	if w.searchErr != nil {
		return nil, w.searchErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []asset.Match
	for i, id := range w.candidates[q.AssetID] {
		a := w.assets[id]
		out = append(out, asset.Match{AssetID: id, DuplicateID: asset.Ref(a.GroupID()), Distance: float64(i) * 0.001})
	}
	return out, nil
}

func (w *world) Merge(ctx context.Context, target string, ids, sources []string) error {
	if w.mergeErr != nil {
		return w.mergeErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.merges = append(w.merges, mergeCall{target: target, assets: ids, sources: sources})
	isSource := map[string]bool{}
	for _, s := range sources {
		isSource[s] = true
	}
	for _, a := range w.assets {
		if isSource[a.GroupID()] {
			a.DuplicateID = asset.Ref(target)
		}
	}
	for _, id := range ids {
		w.assets[id].DuplicateID = asset.Ref(target)
	}
	return nil
}

func (w *world) ClearGroup(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clears = append(w.clears, id)
	w.assets[id].DuplicateID = nil
	return nil
}

func (w *world) StampScanned(ctx context.Context, ids []string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = append(w.stamps, append([]string(nil), ids...))
	for _, id := range ids {
		t := at
		w.assets[id].DuplicatesDetectedAt = &t
	}
	return nil
}

type recordingQueue struct {
	calls [][]asset.Job
	err   error
}

func (q *recordingQueue) Submit(ctx context.Context, jobs []asset.Job) error {
	if q.err != nil {
		return q.err
	}
	q.calls = append(q.calls, jobs)
	return nil
}

func (q *recordingQueue) ids() []string {
	var out []string
	for _, c := range q.calls {
		for _, j := range c {
			out = append(out, j.AssetID)
		}
	}
	sort.Strings(out)
	return out
}

type features struct {
	enabled bool
	err     error
}

func (f features) DuplicateDetection(context.Context) (config.DuplicateDetection, error) {
	return config.DuplicateDetection{Enabled: f.enabled, MaxDistance: 0.01}, f.err
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
