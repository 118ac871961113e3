package models

import (
	"time"
)

type Step string

const (
	StepIdle       Step = "idle"
	StepQueued     Step = "queued"
	StepExtracting Step = "extracting"
	StepScoring    Step = "scoring"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// Scoring status persisted on the document itself.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Document is an uploaded submission together with its latest originality result.
type Document struct {
	ID                string             `bson:"_id" json:"id"`
	UserID            string             `bson:"userId" json:"userId"`
	Name              string             `bson:"documentName" json:"documentName"`
	Filename          string             `bson:"filename" json:"filename"`
	StoragePath       string             `bson:"storagePath" json:"-"`
	Status            string             `bson:"status" json:"status"`
	OriginalityScore  *float64           `bson:"originalityScore,omitempty" json:"originalityScore,omitempty"`
	SimilarityDetails *OriginalityReport `bson:"similarityDetails,omitempty" json:"similarityDetails,omitempty"`
	UploadedAt        time.Time          `bson:"uploadedAt" json:"uploadedAt"`
	ScoredAt          *time.Time         `bson:"scoredAt,omitempty" json:"scoredAt,omitempty"`
}
