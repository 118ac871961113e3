package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	statusKeyPrefix = "originality_status:"
	statusTTL       = 12 * time.Hour
)

var validSteps = map[models.Step]bool{
	models.StepIdle:       true,
	models.StepQueued:     true,
	models.StepExtracting: true,
	models.StepScoring:    true,
	models.StepCompleted:  true,
	models.StepFailed:     true,
}

// StatusTracker keeps the scoring step of each document in Redis.
type StatusTracker struct {
	client redis.Cmdable
}

func NewStatusTracker(client redis.Cmdable) *StatusTracker {
	return &StatusTracker{client: client}
}

func (t *StatusTracker) Update(ctx context.Context, documentID string, step models.Step) error {
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKeyPrefix + documentID

	err := t.client.Set(ctx, rkey, string(step), statusTTL).Err()
	if err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("documentId", documentID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("step", string(step)).
		Str("documentId", documentID).
		Msg("Status updated in Redis")

	return nil
}

// Get returns StepIdle for documents with no recorded status.
func (t *StatusTracker) Get(ctx context.Context, documentID string) (models.Step, error) {
	value, err := t.client.Get(ctx, statusKeyPrefix+documentID).Result()
	if errors.Is(err, redis.Nil) {
		return models.StepIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(value), nil
}
