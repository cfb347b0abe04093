package duplicate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-dedup/asset"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, w *world, q *recordingQueue, enabled bool, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs("G")), WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := New(Deps{Source: w, Searcher: w, Store: w, Queue: q, Features: features{enabled: enabled}}, opts...)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresDeps(t *testing.T) {
	w := newWorld()
	_, err := New(Deps{Source: w, Searcher: w, Store: w, Features: features{}})
	assert.Error(t, err)
	_, err = New(Deps{Source: w, Searcher: w, Store: w, Queue: &recordingQueue{}, Features: features{}}, WithBatchSize(0))
	assert.Error(t, err)
}

func TestScanAll_Disabled(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	q := &recordingQueue{}
	status, err := newService(t, w, q, false).ScanAll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSkipped, status)
	assert.Empty(t, q.calls)
}

func TestScanAll_Batching(t *testing.T) {
	cases := []struct {
		n, k, calls int
	}{
		{n: 0, k: 3, calls: 0},
		{n: 1, k: 3, calls: 1},
		{n: 3, k: 3, calls: 1},
		{n: 7, k: 3, calls: 3},
		{n: 2500, k: 1000, calls: 3},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d/%d", tc.n, tc.k), func(t *testing.T) {
			w := newWorld()
			var want []string
			for i := 0; i < tc.n; i++ {
				id := fmt.Sprintf("a%05d", i)
				w.add(id, "")
				want = append(want, id)
			}
			q := &recordingQueue{}
			status, err := newService(t, w, q, true, WithBatchSize(tc.k)).ScanAll(context.Background(), false)
			require.NoError(t, err)
			assert.Equal(t, asset.StatusSuccess, status)
			assert.Len(t, q.calls, tc.calls)
			assert.Equal(t, want, q.ids())
			for _, call := range q.calls {
				assert.LessOrEqual(t, len(call), tc.k)
				for _, j := range call {
					assert.Equal(t, asset.JobScanOne, j.Name)
				}
			}
		})
	}
}

func TestScanAll_ForceIncludesScanned(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("b", "").DuplicatesDetectedAt = &fixedNow

	q := &recordingQueue{}
	s := newService(t, w, q, true)
	_, err := s.ScanAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, q.ids())

	q.calls = nil
	_, err = s.ScanAll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, q.ids())
}

func TestScanAll_SubmitError(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	boom := errors.New("broker down")
	_, err := newService(t, w, &recordingQueue{err: boom}, true).ScanAll(context.Background(), false)
	assert.ErrorIs(t, err, boom)
}

func TestScanOne_Disabled(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	status, err := newService(t, w, &recordingQueue{}, false).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSkipped, status)
	assert.Zero(t, w.mutations())
}

func TestScanOne_Missing(t *testing.T) {
	w := newWorld()
	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusFailed, status)
	assert.Zero(t, w.mutations())
}

func TestScanOne_NoEmbedding(t *testing.T) {
	w := newWorld()
	w.add("a", "g1").Embedding = nil
	w.add("b", "")
	w.candidates["a"] = []string{"b"}

	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusFailed, status)
	assert.Zero(t, w.mutations())
	assert.Equal(t, "g1", w.group("a"))
}

func TestScanOne_Excluded(t *testing.T) {
	cases := map[string]func(*asset.Asset){
		"stacked": func(a *asset.Asset) { a.StackID = asset.Ref("s1") },
		"hidden":  func(a *asset.Asset) { a.Visibility = asset.VisibilityHidden },
		"locked":  func(a *asset.Asset) { a.Visibility = asset.VisibilityLocked },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := newWorld()
			mutate(w.add("a", ""))
			w.add("b", "g1")
			w.candidates["a"] = []string{"b"}

			status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
			require.NoError(t, err)
			assert.Equal(t, asset.StatusSkipped, status)
			assert.Zero(t, w.mutations())
		})
	}
}

func TestScanOne_NewGroup(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("b", "")
	w.candidates["a"] = []string{"b"}

	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSuccess, status)
	assert.Equal(t, "G1", w.group("a"))
	assert.Equal(t, "G1", w.group("b"))
	require.Len(t, w.stamps, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, w.stamps[0])
	assert.Equal(t, fixedNow, *w.assets["b"].DuplicatesDetectedAt)
}

func TestScanOne_KeepsOwnGroup(t *testing.T) {
	w := newWorld()
	w.add("a", "g1")
	w.add("c", "g2")
	w.add("d", "g2")
	w.candidates["a"] = []string{"c"}

	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSuccess, status)
	for _, id := range []string{"a", "c", "d"} {
		assert.Equal(t, "g1", w.group(id), id)
	}
	require.Len(t, w.merges, 1)
	assert.Equal(t, mergeCall{target: "g1", assets: []string{"c", "a"}, sources: []string{"g2"}}, w.merges[0])
}

func TestScanOne_AbsorbsSecondGroup(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("x1", "g1")
	w.add("x2", "g1")
	w.add("y1", "g2")
	w.add("y2", "g2")
	w.candidates["a"] = []string{"y1", "x1"}

	_, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	for _, id := range []string{"a", "x1", "x2", "y1", "y2"} {
		assert.Equal(t, "g2", w.group(id), id)
	}
	assert.Equal(t, []string{"g1"}, w.merges[0].sources)
}

func TestScanOne_DetachesWithoutCandidates(t *testing.T) {
	w := newWorld()
	w.add("a", "g1")
	w.add("b", "g1")
	w.add("c", "g1")

	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSuccess, status)
	assert.Empty(t, w.group("a"))
	assert.Equal(t, "g1", w.group("b"))
	assert.Equal(t, "g1", w.group("c"))
	assert.Equal(t, []string{"a"}, w.clears)
	assert.Equal(t, [][]string{{"a"}}, w.stamps)
}

func TestScanOne_NoCandidatesNoGroup(t *testing.T) {
	w := newWorld()
	w.add("a", "")

	_, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, w.clears)
	assert.Empty(t, w.merges)
	assert.Equal(t, [][]string{{"a"}}, w.stamps)
}

func TestScanOne_Idempotent(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("b", "")
	w.add("c", "g7")
	w.candidates["a"] = []string{"b", "c"}
	s := newService(t, w, &recordingQueue{}, true)

	_, err := s.ScanOne(context.Background(), "a")
	require.NoError(t, err)
	first := w.group("a")
	require.Len(t, w.merges, 1)

	_, err = s.ScanOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, first, w.group("a"))
	assert.Equal(t, "g7", first)
	assert.Len(t, w.merges, 1, "second run issues no merge")
}

func TestScanOne_SearchError(t *testing.T) {
	w := newWorld()
	w.add("a", "g1")
	boom := errors.New("search down")
	w.searchErr = boom

	status, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, asset.StatusFailed, status)
	assert.Zero(t, w.mutations())
	assert.Equal(t, "g1", w.group("a"))
}

func TestScanOne_MergeErrorSkipsStamp(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("b", "")
	w.candidates["a"] = []string{"b"}
	w.mergeErr = errors.New("locked")

	_, err := newService(t, w, &recordingQueue{}, true).ScanOne(context.Background(), "a")
	assert.Error(t, err)
	assert.Empty(t, w.stamps)
}

type countingObserver struct {
	jobs    map[asset.Status]int
	merges  int
	created int
	submits int
}

func (o *countingObserver) OnJob(_ asset.JobName, st asset.Status, _ time.Duration) { o.jobs[st]++ }
func (o *countingObserver) OnSearch(time.Duration, int, error)                      {}
func (o *countingObserver) OnMerge(_ int, created bool) {
	o.merges++
	if created {
		o.created++
	}
}
func (o *countingObserver) OnSubmit(n int) { o.submits += n }

func TestHandle(t *testing.T) {
	w := newWorld()
	w.add("a", "")
	w.add("b", "")
	w.candidates["a"] = []string{"b"}
	w.candidates["b"] = []string{"a"}
	q := &recordingQueue{}
	obs := &countingObserver{jobs: map[asset.Status]int{}}
	s := newService(t, w, q, true, WithObserver(obs))
	ctx := context.Background()

	status, err := s.Handle(ctx, asset.Job{Name: asset.JobScanAll})
	require.NoError(t, err)
	assert.Equal(t, asset.StatusSuccess, status)
	require.Len(t, q.calls, 1)

	for _, job := range q.calls[0] {
		_, err := s.Handle(ctx, job)
		require.NoError(t, err)
	}
	assert.Equal(t, "G1", w.group("b"))
	assert.Equal(t, 3, obs.jobs[asset.StatusSuccess])
	assert.Equal(t, 1, obs.merges)
	assert.Equal(t, 1, obs.created)
	assert.Equal(t, 2, obs.submits)

	status, err = s.Handle(ctx, asset.Job{Name: "bogus"})
	assert.Error(t, err)
	assert.Equal(t, asset.StatusFailed, status)
}
