// Package redis implements queue.Queue on Redis lists. Consumers move each
// job atomically into a processing list while it runs, so jobs held by a
// crashed consumer are requeued by the next Consume.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/logging"
	"github.com/viant/sqlite-dedup/queue"
)

// Config holds the connection and key settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	MaxAttempts int
}

// envelope is the list element: the job and the attempts made so far.
type envelope struct {
	Job      asset.Job `json:"job"`
	Attempts int       `json:"attempts,omitempty"`
}

func encode(e envelope) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(payload string) (envelope, error) {
	var e envelope
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return e, fmt.Errorf("redis: invalid payload: %w", err)
	}
	return e, e.Job.Validate()
}

// Keys are the lists a queue uses.
type Keys struct {
	Pending    string
	Processing string
	Dead       string
}

// KeysFor derives the list names from the base key.
func KeysFor(base string) Keys {
	return Keys{Pending: base, Processing: base + ":processing", Dead: base + ":dead"}
}

// Queue is a Redis-backed job queue.
type Queue struct {
	client      goredis.UniversalClient
	keys        Keys
	maxAttempts int
	poll        time.Duration
	logger      zerolog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Queue, error) {
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Key, cfg.MaxAttempts, logger), nil
}

// NewWithClient builds a Queue over an existing client.
func NewWithClient(client goredis.UniversalClient, key string, maxAttempts int, logger zerolog.Logger) *Queue {
	if key == "" {
		key = "dupscan:jobs"
	}
	if maxAttempts <= 0 {
		maxAttempts = queue.DefaultMaxAttempts
	}
	return &Queue{client: client, keys: KeysFor(key), maxAttempts: maxAttempts, poll: time.Second, logger: logger}
}

// Submit appends jobs to the pending list with one RPUSH.
func (q *Queue) Submit(ctx context.Context, jobs []asset.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]any, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		payload, err := encode(envelope{Job: j})
		if err != nil {
			return err
		}
		values = append(values, payload)
	}
	if err := q.client.RPush(ctx, q.keys.Pending, values...).Err(); err != nil {
		return fmt.Errorf("redis: submit: %w", err)
	}
	return nil
}

// Recover moves jobs left in the processing list back to the pending list
// and returns how many were moved.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.keys.Processing, q.keys.Pending, "RIGHT", "LEFT").Err()
		if errors.Is(err, goredis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis: recover: %w", err)
		}
		n++
	}
}

// Consume implements queue.Queue.
func (q *Queue) Consume(ctx context.Context, concurrency int, h queue.Handler) error {
	if n, err := q.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		q.logger.Info().Int("jobs", n).Msg("requeued unfinished jobs")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error { return q.loop(gctx, h) })
	}
	return g.Wait()
}

func (q *Queue) loop(ctx context.Context, h queue.Handler) error {
	for {
		payload, err := q.client.BLMove(ctx, q.keys.Pending, q.keys.Processing, "LEFT", "RIGHT", q.poll).Result()
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, goredis.Nil):
			continue
		case errors.Is(err, goredis.ErrClosed):
			return nil
		case err != nil:
			return fmt.Errorf("redis: receive: %w", err)
		}
		if err := q.settle(ctx, payload, h); err != nil {
			return err
		}
	}
}

// settle runs the job and removes it from the processing list, requeueing
// or dead-lettering it on failure.
func (q *Queue) settle(ctx context.Context, payload string, h queue.Handler) error {
	e, err := decode(payload)
	if err != nil {
		q.logger.Error().Err(err).Msg("dead-lettering malformed job")
		return q.move(ctx, payload, q.keys.Dead, payload)
	}
	log := q.logger.With().Str(logging.KeyJob, string(e.Job.Name)).Str(logging.KeyAssetID, e.Job.AssetID).Logger()
	herr := h(ctx, e.Job)
	if herr == nil {
		return q.move(ctx, payload, "", "")
	}
	if ctx.Err() != nil {
		// left in the processing list for Recover
		return nil
	}
	next, dest := retry(e, q.maxAttempts, q.keys)
	if dest == q.keys.Dead {
		log.Error().Err(herr).Int("attempt", next.Attempts).Msg("job dropped")
	} else {
		log.Warn().Err(herr).Int("attempt", next.Attempts).Msg("job failed, redelivering")
	}
	out, err := encode(next)
	if err != nil {
		return err
	}
	return q.move(ctx, payload, dest, out)
}

// retry counts the failed attempt and picks the list the job goes to.
func retry(e envelope, maxAttempts int, keys Keys) (envelope, string) {
	e.Attempts++
	if e.Attempts >= maxAttempts {
		return e, keys.Dead
	}
	return e, keys.Pending
}

// move removes payload from the processing list and, when dest is set,
// pushes value onto dest in the same transaction.
func (q *Queue) move(ctx context.Context, payload, dest, value string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.Processing, 1, payload)
		if dest != "" {
			pipe.RPush(ctx, dest, value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: settle: %w", err)
	}
	return nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.keys.Pending).Result()
}

// Close closes the client.
func (q *Queue) Close() error { return q.client.Close() }
