package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/RishiKendai/paperlit/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	readBatchSize = 10
	readBlock     = time.Second
	readBackoff   = time.Second
)

// DocumentScorer scores one stored document.
type DocumentScorer interface {
	ScoreDocument(ctx context.Context, userID, documentID string) (*models.Document, error)
}

// Consumer scores documents queued on a Redis stream. Several consumers may share the group;
// each job is delivered to one of them.
type Consumer struct {
	client        redis.Cmdable
	streamKey     string
	consumerGroup string
	consumerName  string
	scorer        DocumentScorer
	retryHandler  *RetryHandler
	retention     time.Duration
	reclaimEvery  time.Duration
	trimEvery     time.Duration
	// claimMinIdle is how long a job may sit unacknowledged with another consumer
	// before this one takes it over.
	claimMinIdle time.Duration
	lastReclaim  time.Time
}

func NewConsumer(
	client redis.Cmdable,
	streamKey string,
	consumerGroup string,
	consumerName string,
	scorer DocumentScorer,
	retryHandler *RetryHandler,
	retention time.Duration,
) *Consumer {
	return &Consumer{
		client:        client,
		streamKey:     streamKey,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		scorer:        scorer,
		retryHandler:  retryHandler,
		retention:     retention,
		reclaimEvery:  30 * time.Second,
		trimEvery:     time.Hour,
		claimMinIdle:  time.Minute,
	}
}

// Start blocks until ctx ends, scoring every job delivered to this consumer.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		log.Warn().Err(err).Str("group", c.consumerGroup).Msg("Scoring group not ready, reading anyway")
	}

	// Jobs a crashed scorer left unacknowledged.
	if err := c.reclaimStalledJobs(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to reclaim stalled scoring jobs")
	}
	c.lastReclaim = time.Now()

	go c.trimLoop(ctx)

	log.Info().
		Str("stream", c.streamKey).
		Str("consumer", c.consumerName).
		Dur("retention", c.retention).
		Msg("Scoring consumer started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.readBatch(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to read scoring jobs")
			select {
			case <-ctx.Done():
			case <-time.After(readBackoff):
			}
		}
	}
}

// ensureGroup creates the stream and group on first use. A new group only sees jobs
// queued after it exists.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.streamKey, c.consumerGroup, "$").Err()
	if err == nil {
		log.Info().Str("group", c.consumerGroup).Str("stream", c.streamKey).Msg("Scoring group created")
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("failed to create consumer group: %w", err)
}

// reclaimStalledJobs takes over jobs idle in the pending list for at least claimMinIdle
// and scores them.
func (c *Consumer) reclaimStalledJobs(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.streamKey,
		Group:  c.consumerGroup,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	stalled := make([]string, 0, len(pending))
	for _, p := range pending {
		if p.Idle >= c.claimMinIdle {
			stalled = append(stalled, p.ID)
		}
	}
	if len(stalled) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.streamKey,
		Group:    c.consumerGroup,
		Consumer: c.consumerName,
		MinIdle:  c.claimMinIdle,
		Messages: stalled,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	log.Info().Int("stalled", len(stalled)).Int("claimed", len(claimed)).Msg("Reclaimed stalled scoring jobs")

	for _, msg := range claimed {
		if err := c.processMessage(ctx, &msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Reclaimed scoring job failed")
		}
	}
	return nil
}

func (c *Consumer) readBatch(ctx context.Context) error {
	if time.Since(c.lastReclaim) > c.reclaimEvery {
		if err := c.reclaimStalledJobs(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to reclaim stalled scoring jobs")
		}
		c.lastReclaim = time.Now()
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.consumerGroup,
		Consumer: c.consumerName,
		Streams:  []string{c.streamKey, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		if s.Stream != c.streamKey {
			continue
		}
		for _, msg := range s.Messages {
			if err := c.processMessage(ctx, &msg); err != nil {
				log.Error().Err(err).Str("message_id", msg.ID).Msg("Scoring job failed")
			}
		}
	}
	return nil
}

// processMessage scores one job. Jobs are acknowledged once they succeed, fail permanently
// or reach the dead letter list. A job interrupted by shutdown stays pending for reclaiming.
func (c *Consumer) processMessage(ctx context.Context, msg *redis.XMessage) error {
	fields := make(map[string]string, len(msg.Values))
	for key, val := range msg.Values {
		if value, ok := val.(string); ok {
			fields[key] = value
		}
	}

	job, err := ParseScoreJob(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping unreadable scoring job")
		c.acknowledge(ctx, msg.ID)
		return err
	}

	payload := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		payload[k] = v
	}

	err = c.retryHandler.RetryWithBackoff(ctx, func() error {
		_, scoreErr := c.scorer.ScoreDocument(ctx, job.UserID, job.DocumentID)
		if errors.Is(scoreErr, repository.ErrNotFound) {
			// Deleted or never stored; retrying cannot help.
			return fmt.Errorf("%w: %w", ErrPermanent, scoreErr)
		}
		return scoreErr
	}, msg.ID, payload)

	if errors.Is(err, context.Canceled) {
		return err
	}

	if ackErr := c.acknowledge(ctx, msg.ID); ackErr != nil {
		return ackErr
	}
	return err
}

// trimStream drops jobs queued longer ago than the retention window.
func (c *Consumer) trimStream(ctx context.Context) error {
	cutoff := time.Now().Add(-c.retention)
	minID := fmt.Sprintf("%d-0", cutoff.UnixMilli())

	trimmed, err := c.client.XTrimMinID(ctx, c.streamKey, minID).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if trimmed > 0 {
		log.Debug().
			Int64("trimmed", trimmed).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Trimmed expired scoring jobs")
	}
	return nil
}

func (c *Consumer) trimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.trimEvery)
	defer ticker.Stop()

	for {
		if err := c.trimStream(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to trim scoring stream")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.streamKey, c.consumerGroup, messageID).Err(); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to acknowledge scoring job")
		return err
	}
	return nil
}
