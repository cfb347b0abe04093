package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-dedup/asset"
)

func scanOne(id string) asset.Job { return asset.Job{Name: asset.JobScanOne, AssetID: id} }

func TestMemory_SubmitValidates(t *testing.T) {
	q := NewMemory(0, zerolog.Nop())
	err := q.Submit(context.Background(), []asset.Job{scanOne("a"), {Name: asset.JobScanOne}})
	assert.Error(t, err)
	assert.Zero(t, q.Len(), "invalid batches are rejected whole")

	require.NoError(t, q.Submit(context.Background(), []asset.Job{scanOne("a"), {Name: asset.JobScanAll}}))
	assert.Equal(t, 2, q.Len())

	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Submit(context.Background(), []asset.Job{scanOne("b")}), ErrClosed)
}

func TestMemory_ConsumeDeliversEveryJob(t *testing.T) {
	q := NewMemory(0, zerolog.Nop())
	var jobs []asset.Job
	for i := 0; i < 100; i++ {
		jobs = append(jobs, scanOne(fmt.Sprintf("a%d", i)))
	}
	require.NoError(t, q.Submit(context.Background(), jobs))

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 4, func(_ context.Context, j asset.Job) error {
			mu.Lock()
			seen[j.AssetID]++
			n := len(seen)
			mu.Unlock()
			if n == len(jobs) {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consume did not finish")
	}
	assert.Len(t, seen, 100)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestMemory_Redelivery(t *testing.T) {
	q := NewMemory(3, zerolog.Nop())
	require.NoError(t, q.Submit(context.Background(), []asset.Job{scanOne("flaky"), scanOne("broken")}))

	var flaky, broken int32
	err := q.Drain(context.Background(), func(_ context.Context, j asset.Job) error {
		switch j.AssetID {
		case "flaky":
			if atomic.AddInt32(&flaky, 1) < 2 {
				return errors.New("transient")
			}
		case "broken":
			atomic.AddInt32(&broken, 1)
			return errors.New("permanent")
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, flaky)
	assert.EqualValues(t, 3, broken)
	assert.Equal(t, []asset.Job{scanOne("broken")}, q.Dead())
	assert.Zero(t, q.Len())
}

func TestMemory_DrainIncludesFollowUps(t *testing.T) {
	q := NewMemory(0, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, q.Submit(ctx, []asset.Job{{Name: asset.JobScanAll}}))

	var handled []string
	require.NoError(t, q.Drain(ctx, func(ctx context.Context, j asset.Job) error {
		handled = append(handled, j.Key())
		if j.Name == asset.JobScanAll {
			return q.Submit(ctx, []asset.Job{scanOne("a"), scanOne("b")})
		}
		return nil
	}))
	assert.Equal(t, []string{string(asset.JobScanAll), "a", "b"}, handled)
}

func TestMemory_CloseStopsConsumers(t *testing.T) {
	q := NewMemory(0, zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(context.Background(), 2, func(context.Context, asset.Job) error { return nil })
	}()
	require.NoError(t, q.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumers still running after Close")
	}
}
