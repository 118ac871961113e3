package plagiarism

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/rs/zerolog/log"
)

// SignificanceFloor is the similarity a corpus document must exceed to be reported.
const SignificanceFloor = 0.01

// CorpusEntry is one previously submitted text and its display name.
type CorpusEntry struct {
	Text string
	Name string
}

// Aggregator scores a new text against a corpus plus published material.
type Aggregator struct {
	provider     ExternalSimilarityProvider
	pool         *WorkerPool
	minBlockSize int
}

// NewAggregator builds an aggregator. A nil pool compares sequentially; a nil provider
// disables published-material lookups.
func NewAggregator(provider ExternalSimilarityProvider, pool *WorkerPool) *Aggregator {
	if provider == nil {
		provider = DisabledProvider{}
	}
	return &Aggregator{
		provider:     provider,
		pool:         pool,
		minBlockSize: DefaultMinBlockSize,
	}
}

// Score returns the originality of newText and the ranked report behind it. The only error is
// ctx's, when it ends before every corpus entry has been compared.
func (a *Aggregator) Score(ctx context.Context, newText string, corpus []CorpusEntry) (float64, *models.OriginalityReport, error) {
	if newText == "" {
		log.Debug().Msg("New text is empty, treating as fully original")
		return 1.0, models.NewEmptyReport(), nil
	}

	externalCh := make(chan []models.SimilarityHit, 1)
	go func() {
		externalCh <- a.provider.FindExternalMatches(ctx, newText)
	}()

	corpusHits, err := a.compareCorpus(ctx, newText, corpus)
	if err != nil {
		return 0, nil, err
	}
	externalHits := <-externalCh

	if len(corpus) == 0 && len(externalHits) == 0 {
		log.Debug().Msg("No texts to compare with")
		return 1.0, models.NewEmptyReport(), nil
	}

	report := buildReport(corpusHits, externalHits)

	log.Debug().
		Int("chars", utf8.RuneCountInString(newText)).
		Int("corpus", len(corpus)).
		Int("hits", len(report.SimilarHits)).
		Int("externalHits", report.ExternalHitCount).
		Float64("maxSimilarity", report.MaxSimilarity).
		Float64("originality", report.OverallOriginality).
		Msg("Originality scored")

	return report.OverallOriginality, report, nil
}

// compareCorpus returns the significant hits in corpus order. It stops between entries once
// ctx is done.
func (a *Aggregator) compareCorpus(ctx context.Context, newText string, corpus []CorpusEntry) ([]models.SimilarityHit, error) {
	results := make([]*models.SimilarityHit, len(corpus))

	if a.pool == nil || len(corpus) < 2 {
		for i, entry := range corpus {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = compareEntry(newText, entry, a.minBlockSize)
		}
		return collectHits(results), nil
	}

	resultChan := make(chan comparisonResult, len(corpus))
	done := make([]bool, len(corpus))
	pending := len(corpus)

	for i, entry := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job := &ComparisonJob{
			Ctx:          ctx,
			Index:        i,
			NewText:      newText,
			Entry:        entry,
			MinBlockSize: a.minBlockSize,
			ResultChan:   resultChan,
		}
		if err := a.pool.Submit(job); err != nil {
			log.Warn().Err(err).Msg("Worker pool unavailable, comparing inline")
			results[i] = compareEntry(newText, entry, a.minBlockSize)
			done[i] = true
			pending--
		}
	}

	for pending > 0 {
		select {
		case <-ctx.Done():
			// Queued jobs see the same ctx and skip their comparison.
			return nil, ctx.Err()
		case result := <-resultChan:
			if done[result.index] {
				continue
			}
			results[result.index] = result.hit
			done[result.index] = true
			pending--
		case <-a.pool.Done():
			// The pool drops queued jobs on shutdown; finish here.
			for i, entry := range corpus {
				if done[i] {
					continue
				}
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				results[i] = compareEntry(newText, entry, a.minBlockSize)
				done[i] = true
			}
			pending = 0
		}
	}

	return collectHits(results), nil
}

type comparisonResult struct {
	index int
	hit   *models.SimilarityHit
}

// ComparisonJob compares the new text with one corpus entry on the worker pool.
type ComparisonJob struct {
	Ctx          context.Context
	Index        int
	NewText      string
	Entry        CorpusEntry
	MinBlockSize int
	ResultChan   chan<- comparisonResult
}

// Execute never blocks on the result channel, which is sized for every job. A job whose
// request context has ended reports no hit without comparing.
func (j *ComparisonJob) Execute(ctx context.Context) error {
	if j.cancelled(ctx) {
		j.ResultChan <- comparisonResult{index: j.Index}
		return nil
	}
	j.ResultChan <- comparisonResult{
		index: j.Index,
		hit:   compareEntry(j.NewText, j.Entry, j.MinBlockSize),
	}
	return nil
}

func (j *ComparisonJob) cancelled(poolCtx context.Context) bool {
	if j.Ctx != nil && j.Ctx.Err() != nil {
		return true
	}
	return poolCtx.Err() != nil
}

// compareEntry returns nil when the entry is at or below the significance floor.
func compareEntry(newText string, entry CorpusEntry, minBlockSize int) *models.SimilarityHit {
	score, blocks := CompareWithMinBlock(newText, entry.Text, minBlockSize)

	log.Debug().
		Str("document", entry.Name).
		Float64("similarity", score).
		Msg("Compared with corpus document")

	if score <= SignificanceFloor {
		return nil
	}
	return &models.SimilarityHit{
		SourceName:     entry.Name,
		SourceKind:     models.SourceUserDocument,
		Score:          score,
		MatchingBlocks: blocks,
	}
}

func collectHits(results []*models.SimilarityHit) []models.SimilarityHit {
	hits := make([]models.SimilarityHit, 0, len(results))
	for _, hit := range results {
		if hit != nil {
			hits = append(hits, *hit)
		}
	}
	return hits
}

// buildReport merges corpus hits ahead of external hits and ranks them by score,
// keeping input order among equal scores.
func buildReport(corpusHits, externalHits []models.SimilarityHit) *models.OriginalityReport {
	hits := make([]models.SimilarityHit, 0, len(corpusHits)+len(externalHits))
	hits = append(hits, corpusHits...)
	hits = append(hits, externalHits...)

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	report := models.NewEmptyReport()
	report.SimilarHits = hits
	if len(hits) == 0 {
		return report
	}

	report.MaxSimilarity = hits[0].Score
	report.OverallOriginality = 1.0 - report.MaxSimilarity

	if len(externalHits) > 0 {
		report.ExternalHitCount = len(externalHits)
		report.ExternalSourceLabels = make([]string, 0, len(externalHits))
		for _, hit := range externalHits {
			report.ExternalSourceLabels = append(report.ExternalSourceLabels, hit.ExternalSourceLabel)
		}
	}

	return report
}
