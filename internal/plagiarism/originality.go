package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/models"
)

// ErrCorpusMismatch is returned when corpus texts and names are not paired one to one.
var ErrCorpusMismatch = errors.New("corpus texts and document names differ in length")

// CalculateOriginality scores newText against previousTexts. docNames may be nil, in which case
// the documents are labelled "Document 1", "Document 2", ... in input order. The returned score
// is clamped to [0, 1].
func (a *Aggregator) CalculateOriginality(
	ctx context.Context,
	newText string,
	previousTexts []string,
	docNames []string,
) (float64, *models.OriginalityReport, error) {
	corpus, err := BuildCorpus(previousTexts, docNames)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	originality, report, err := a.Score(ctx, newText, corpus)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to compare corpus: %w", err)
	}

	return clampUnit(originality), report, nil
}

// BuildCorpus pairs texts with their names, generating names when none are given.
func BuildCorpus(texts []string, names []string) ([]CorpusEntry, error) {
	if names != nil && len(names) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d names", ErrCorpusMismatch, len(texts), len(names))
	}

	corpus := make([]CorpusEntry, len(texts))
	for i, text := range texts {
		name := fmt.Sprintf("Document %d", i+1)
		if names != nil {
			name = names[i]
		}
		corpus[i] = CorpusEntry{Text: text, Name: name}
	}
	return corpus, nil
}

func clampUnit(v float64) float64 {
	if v < 0.0 || math.IsNaN(v) {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
