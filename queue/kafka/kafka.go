// Package kafka implements queue.Queue on a Kafka topic. Jobs are keyed by
// asset id so redeliveries of one asset land on the same partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/logging"
	"github.com/viant/sqlite-dedup/queue"
)

// Config holds the broker settings.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MaxAttempts int
}

// Queue is a Kafka-backed job queue.
type Queue struct {
	producer    sarama.SyncProducer
	group       sarama.ConsumerGroup
	topic       string
	maxAttempts int
	backoff     time.Duration
	logger      zerolog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// New connects a producer and a consumer group.
func New(cfg Config, logger zerolog.Logger) (*Queue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is empty")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 5
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka: producer: %w", err)
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("kafka: consumer group: %w", err)
	}
	return NewWithClients(producer, group, cfg.Topic, cfg.MaxAttempts, logger), nil
}

// NewWithClients builds a Queue over existing clients; group may be nil for
// a submit-only queue.
func NewWithClients(producer sarama.SyncProducer, group sarama.ConsumerGroup, topic string, maxAttempts int, logger zerolog.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = queue.DefaultMaxAttempts
	}
	return &Queue{
		producer:    producer,
		group:       group,
		topic:       topic,
		maxAttempts: maxAttempts,
		backoff:     500 * time.Millisecond,
		logger:      logger,
	}
}

// Submit publishes jobs in one batch.
func (q *Queue) Submit(ctx context.Context, jobs []asset.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		payload, err := asset.MarshalJob(j)
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: q.topic,
			Key:   sarama.StringEncoder(j.Key()),
			Value: sarama.ByteEncoder(payload),
		})
	}
	if err := q.producer.SendMessages(msgs); err != nil {
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) && len(perrs) > 0 {
			return fmt.Errorf("kafka: %d of %d jobs not delivered: %w", len(perrs), len(msgs), perrs[0].Err)
		}
		return fmt.Errorf("kafka: send: %w", err)
	}
	return nil
}

// Consume joins the consumer group and handles jobs until ctx is done.
// Parallelism follows the partitions assigned to this member; concurrency
// is not used.
func (q *Queue) Consume(ctx context.Context, _ int, h queue.Handler) error {
	if q.group == nil {
		return fmt.Errorf("kafka: queue has no consumer group")
	}
	go func() {
		for err := range q.group.Errors() {
			q.logger.Error().Err(err).Msg("kafka consumer error")
		}
	}()
	handler := &groupHandler{queue: q, handle: h}
	for {
		if err := q.group.Consume(ctx, []string{q.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Error().Err(err).Msg("kafka consume")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close closes the producer and the consumer group.
func (q *Queue) Close() error {
	err := q.producer.Close()
	if q.group != nil {
		if gerr := q.group.Close(); err == nil {
			err = gerr
		}
	}
	return err
}

type groupHandler struct {
	queue  *Queue
	handle queue.Handler
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles messages of one partition in order. A failing job is
// retried in place up to maxAttempts; the offset is marked once the job
// succeeds or is dropped, since Kafka offsets cannot skip a message.
func (g *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !g.process(session.Context(), msg) {
				return nil
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// process reports false when the session ended before the job settled.
func (g *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	log := g.queue.logger.With().Int32("partition", msg.Partition).Int64("offset", msg.Offset).Logger()
	job, err := asset.UnmarshalJob(msg.Value)
	if err != nil {
		log.Error().Err(err).Msg("dropping malformed job")
		return true
	}
	log = log.With().Str(logging.KeyJob, string(job.Name)).Str(logging.KeyAssetID, job.AssetID).Logger()
	for attempt := 1; ; attempt++ {
		err := g.handle(ctx, job)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt >= g.queue.maxAttempts {
			log.Error().Err(err).Int("attempt", attempt).Msg("job dropped")
			return true
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("job failed, retrying")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(g.queue.backoff * time.Duration(attempt)):
		}
	}
}
