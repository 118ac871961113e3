package stream

import (
	"context"
	"fmt"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Producer appends scoring jobs to the stream.
type Producer struct {
	client    redis.Cmdable
	streamKey string
}

func NewProducer(client redis.Cmdable, streamKey string) *Producer {
	return &Producer{client: client, streamKey: streamKey}
}

// Enqueue returns the stream entry id.
func (p *Producer) Enqueue(ctx context.Context, job *models.ScoreJob) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: jobValues(job),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue scoring job: %w", err)
	}

	log.Debug().
		Str("message_id", id).
		Str("documentId", job.DocumentID).
		Msg("Scoring job enqueued")

	return id, nil
}
