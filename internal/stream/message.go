package stream

import (
	"fmt"
	"strings"

	"github.com/RishiKendai/paperlit/internal/models"
)

const (
	fieldDocumentID = "documentId"
	fieldUserID     = "userId"
)

// StreamMessage is a stream entry with its string-valued fields.
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseScoreJob reads a scoring job from a stream entry.
func ParseScoreJob(msg *StreamMessage) (*models.ScoreJob, error) {
	job := &models.ScoreJob{
		DocumentID: strings.TrimSpace(msg.Fields[fieldDocumentID]),
		UserID:     strings.TrimSpace(msg.Fields[fieldUserID]),
	}
	if job.DocumentID == "" {
		return nil, fmt.Errorf("message %s: missing %s", msg.ID, fieldDocumentID)
	}
	if job.UserID == "" {
		return nil, fmt.Errorf("message %s: missing %s", msg.ID, fieldUserID)
	}
	return job, nil
}

func jobValues(job *models.ScoreJob) map[string]interface{} {
	return map[string]interface{}{
		fieldDocumentID: job.DocumentID,
		fieldUserID:     job.UserID,
	}
}
