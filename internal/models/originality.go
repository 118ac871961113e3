package models

// SourceKind tells whether a hit came from the submitter's own corpus or from published material.
type SourceKind string

const (
	SourceUserDocument      SourceKind = "User Document"
	SourcePublishedMaterial SourceKind = "Published Material"
)

// MatchingBlock is one contiguous run of text shared by the new document and a source.
// Offsets are character offsets. For published material OtherStart/OtherEnd are placeholders.
type MatchingBlock struct {
	SourceStart int    `bson:"a_start" json:"a_start"`
	SourceEnd   int    `bson:"a_end" json:"a_end"`
	OtherStart  int    `bson:"b_start" json:"b_start"`
	OtherEnd    int    `bson:"b_end" json:"b_end"`
	Length      int    `bson:"size" json:"size"`
	Snippet     string `bson:"text" json:"text"`
}

// SimilarityHit is a corpus document or external source judged similar to the new document.
type SimilarityHit struct {
	SourceName          string          `bson:"document_name" json:"document_name"`
	SourceKind          SourceKind      `bson:"document_type" json:"document_type"`
	Score               float64         `bson:"similarity_score" json:"similarity_score"`
	MatchingBlocks      []MatchingBlock `bson:"matching_blocks" json:"matching_blocks"`
	ExternalSourceLabel string          `bson:"source,omitempty" json:"source,omitempty"`
}

// OriginalityReport is the result of one scoring run. SimilarHits is ordered by score, highest first.
type OriginalityReport struct {
	OverallOriginality   float64         `bson:"overall_originality" json:"overall_originality"`
	MaxSimilarity        float64         `bson:"max_similarity" json:"max_similarity"`
	SimilarHits          []SimilarityHit `bson:"similar_documents" json:"similar_documents"`
	ExternalHitCount     int             `bson:"ai_detected_similarities,omitempty" json:"ai_detected_similarities,omitempty"`
	ExternalSourceLabels []string        `bson:"ai_similarity_sources,omitempty" json:"ai_similarity_sources,omitempty"`
}

// NewEmptyReport returns the report of a fully original document.
func NewEmptyReport() *OriginalityReport {
	return &OriginalityReport{
		OverallOriginality: 1.0,
		MaxSimilarity:      0.0,
		SimilarHits:        []SimilarityHit{},
	}
}

// HasHits reports whether anything similar was found.
func (r *OriginalityReport) HasHits() bool {
	return r != nil && len(r.SimilarHits) > 0
}
