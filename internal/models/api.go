package models

// OriginalityRequest scores raw text against a caller supplied corpus.
type OriginalityRequest struct {
	Text          string   `json:"text"`
	PreviousTexts []string `json:"previousTexts"`
	DocNames      []string `json:"docNames,omitempty"`
}

// OriginalityResponse carries the clamped score and its report.
type OriginalityResponse struct {
	OriginalityScore float64            `json:"originalityScore"`
	Report           *OriginalityReport `json:"report"`
}

// UploadResponse is returned when a document is accepted for asynchronous scoring.
type UploadResponse struct {
	Step       Step   `json:"step"`
	DocumentID string `json:"documentId"`
}

// StatusResponse reports the scoring step of a document.
type StatusResponse struct {
	DocumentID string `json:"documentId"`
	Step       Step   `json:"step"`
}
