package models

// ScoreJob represents a scoring request carried on the Redis stream
type ScoreJob struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
}
