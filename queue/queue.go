// Package queue defines the job queue used to fan out duplicate detection
// work, and an in-process implementation. Broker-backed queues live in the
// kafka and redis subpackages.
//
// Delivery is at least once: a job whose handler fails is delivered again
// until it has been attempted MaxAttempts times.
package queue

import (
	"context"
	"errors"

	"github.com/viant/sqlite-dedup/asset"
)

// DefaultMaxAttempts bounds redelivery of a failing job.
const DefaultMaxAttempts = 3

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("queue: closed")

// Handler processes one job. A non-nil error requests redelivery.
type Handler func(ctx context.Context, job asset.Job) error

// Queue is a job queue.
type Queue interface {
	// Submit enqueues jobs in one call.
	Submit(ctx context.Context, jobs []asset.Job) error
	// Consume delivers jobs to h from up to concurrency goroutines and
	// blocks until ctx is done or the queue is closed.
	Consume(ctx context.Context, concurrency int, h Handler) error
	Close() error
}
