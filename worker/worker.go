// Package worker runs queued duplicate detection jobs with bounded
// concurrency and throughput, and enqueues the periodic scan-all job.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/config"
	"github.com/viant/sqlite-dedup/logging"
	"github.com/viant/sqlite-dedup/queue"
)

// Handler executes one job.
type Handler interface {
	Handle(ctx context.Context, job asset.Job) (asset.Status, error)
}

// Runner consumes a queue and dispatches jobs to a Handler.
type Runner struct {
	queue       queue.Queue
	handler     Handler
	concurrency int
	limiter     *rate.Limiter
	schedule    string
	logger      zerolog.Logger
}

// New creates a Runner. A zero cfg.Rate disables throttling and an empty
// cfg.Schedule disables the periodic scan.
func New(q queue.Queue, h Handler, cfg config.Worker, logger zerolog.Logger) (*Runner, error) {
	if q == nil || h == nil {
		return nil, fmt.Errorf("worker: queue and handler are required")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("worker: invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	r := &Runner{
		queue:       q,
		handler:     h,
		concurrency: cfg.Concurrency,
		schedule:    cfg.Schedule,
		logger:      logger,
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return r, nil
}

// Run consumes jobs until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if r.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(r.schedule, func() {
			if err := r.Trigger(ctx, false); err != nil {
				r.logger.Error().Err(err).Msg("scheduled scan-all not queued")
			}
		}); err != nil {
			return fmt.Errorf("worker: schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
		r.logger.Info().Str("schedule", r.schedule).Msg("scan-all scheduled")
	}
	r.logger.Info().Int("concurrency", r.concurrency).Msg("worker started")
	return r.queue.Consume(ctx, r.concurrency, r.Handle)
}

// Trigger enqueues a scan-all job.
func (r *Runner) Trigger(ctx context.Context, force bool) error {
	return r.queue.Submit(ctx, []asset.Job{{Name: asset.JobScanAll, Force: force}})
}

// Handle runs one job under the rate limit; it is the queue.Handler of the
// runner.
func (r *Runner) Handle(ctx context.Context, job asset.Job) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	status, err := r.handler.Handle(ctx, job)
	ev := r.logger.Debug()
	if err != nil {
		ev = r.logger.Error().Err(err)
	}
	ev.Str(logging.KeyJob, string(job.Name)).
		Str(logging.KeyAssetID, job.AssetID).
		Str(logging.KeyStatus, string(status)).
		Dur("took", time.Since(start)).
		Msg("job finished")
	return err
}
