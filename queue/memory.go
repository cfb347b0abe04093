package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/logging"
)

type delivery struct {
	job      asset.Job
	attempts int
}

// Memory is an in-process FIFO queue.
type Memory struct {
	maxAttempts int
	logger      zerolog.Logger

	mu     sync.Mutex
	items  []delivery
	dead   []asset.Job
	closed bool
	// notify wakes one waiting consumer; a consumer that takes an item
	// re-signals while items remain.
	notify chan struct{}
	done   chan struct{}
}

var _ Queue = (*Memory)(nil)

// NewMemory creates an in-process queue. maxAttempts <= 0 selects
// DefaultMaxAttempts.
func NewMemory(maxAttempts int, logger zerolog.Logger) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Memory{
		maxAttempts: maxAttempts,
		logger:      logger,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Submit implements Queue.
func (m *Memory) Submit(ctx context.Context, jobs []asset.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
	}
	for _, j := range jobs {
		m.items = append(m.items, delivery{job: j})
	}
	m.signal()
	return nil
}

func (m *Memory) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending jobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Dead returns the jobs dropped after exhausting their attempts.
func (m *Memory) Dead() []asset.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]asset.Job(nil), m.dead...)
}

// Consume implements Queue.
func (m *Memory) Consume(ctx context.Context, concurrency int, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				d, ok := m.next(gctx)
				if !ok {
					return nil
				}
				m.run(gctx, d, h)
			}
		})
	}
	return g.Wait()
}

// Drain handles pending jobs until the queue is empty, including jobs
// submitted by the handler itself.
func (m *Memory) Drain(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.mu.Lock()
		if len(m.items) == 0 {
			m.mu.Unlock()
			return nil
		}
		d := m.items[0]
		m.items = m.items[1:]
		m.mu.Unlock()
		m.run(ctx, d, h)
	}
}

func (m *Memory) run(ctx context.Context, d delivery, h Handler) {
	err := h(ctx, d.job)
	if err == nil {
		return
	}
	d.attempts++
	log := m.logger.With().Str(logging.KeyJob, string(d.job.Name)).Str(logging.KeyAssetID, d.job.AssetID).Int("attempt", d.attempts).Logger()
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.attempts >= m.maxAttempts || m.closed {
		log.Error().Err(err).Msg("job dropped")
		m.dead = append(m.dead, d.job)
		return
	}
	log.Warn().Err(err).Msg("job failed, redelivering")
	m.items = append(m.items, d)
	m.signal()
}

func (m *Memory) next(ctx context.Context) (delivery, bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			d := m.items[0]
			m.items = m.items[1:]
			if len(m.items) > 0 {
				m.signal()
			}
			m.mu.Unlock()
			return d, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return delivery{}, false
		}
		select {
		case <-ctx.Done():
			return delivery{}, false
		case <-m.done:
		case <-m.notify:
		}
	}
}

// Close stops consumers once the pending jobs are handed out and rejects
// further submissions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
