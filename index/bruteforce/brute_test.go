package bruteforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) *Index {
	t.Helper()
	idx, err := New(
		[]string{"a", "b", "c", "zero"},
		[][]float32{{1, 0}, {0.99, 0.05}, {0, 1}, {0, 0}},
	)
	require.NoError(t, err)
	return idx
}

func TestBuildValidates(t *testing.T) {
	_, err := New([]string{"a"}, nil)
	assert.Error(t, err)
	_, err = New([]string{"a", "b"}, [][]float32{{1, 0}, {1}})
	assert.Error(t, err)

	idx, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	ids, _, err := idx.Range([]float32{1, 0}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRangeBoundsDistance(t *testing.T) {
	idx := fixture(t)

	ids, distances, err := idx.Range([]float32{1, 0}, 0.01, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.InDelta(t, 0.0, distances[0], 1e-9)
	for _, d := range distances {
		assert.LessOrEqual(t, d, 0.01)
	}

	ids, _, err = idx.Range([]float32{1, 0}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids, "limit truncates after ordering")

	ids, _, err = idx.Range([]float32{0, 0}, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, ids, "zero query matches nothing")
}

func TestRangeBreaksTiesByID(t *testing.T) {
	idx, err := New(
		[]string{"d", "b", "c", "a", "e"},
		[][]float32{{1, 0}, {2, 0}, {0.5, 0}, {3, 0}, {1, 1}},
	)
	require.NoError(t, err)

	ids, _, err := idx.Range([]float32{1, 0}, 0.01, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	ids, _, err = idx.Range([]float32{1, 0}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids, "truncation keeps the lowest ids among ties")

	_, _, err = idx.Range([]float32{1, 0, 0}, 1, 0)
	assert.Error(t, err)
}
