package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// DeadLetter is the record pushed to the dead-letter list.
type DeadLetter struct {
	MessageID string                 `json:"messageId"`
	Fields    map[string]interface{} `json:"fields"`
	Error     string                 `json:"error"`
	Attempts  int                    `json:"attempts"`
	FailedAt  time.Time              `json:"failedAt"`
}

type RetryHandler struct {
	client        redis.Cmdable
	deadLetterKey string
	maxRetries    int
	baseDelay     time.Duration
}

func NewRetryHandler(client redis.Cmdable, deadLetterKey string) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
	}
}

// RetryWithBackoff runs fn up to maxRetries times, doubling the delay after each failure.
// The last error is returned after the message has been dead-lettered.
func (h *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var err error
	attempts := 0
	delay := h.baseDelay

	for attempts < h.maxRetries {
		attempts++
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			break
		}

		log.Warn().
			Err(err).
			Str("message_id", messageID).
			Int("attempt", attempts).
			Int("max_retries", h.maxRetries).
			Msg("Processing failed, retrying")

		if attempts == h.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if dlqErr := h.sendToDeadLetter(ctx, messageID, fields, err, attempts); dlqErr != nil {
		log.Error().Err(dlqErr).Str("message_id", messageID).Msg("Failed to dead-letter message")
	}
	return err
}

func (h *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error, attempts int) error {
	payload, err := json.Marshal(DeadLetter{
		MessageID: messageID,
		Fields:    fields,
		Error:     cause.Error(),
		Attempts:  attempts,
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	if err := h.client.LPush(ctx, h.deadLetterKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}

	log.Error().
		Err(cause).
		Str("message_id", messageID).
		Str("dead_letter_key", h.deadLetterKey).
		Int("attempts", attempts).
		Msg("Message moved to dead-letter queue")
	return nil
}
