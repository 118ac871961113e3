package plagiarism

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultLiveTimeout   = 10 * time.Second
	maxLiveResponseBytes = 4 << 20
)

// LiveProvider queries a remote similarity service. Any failure is answered with
// simulated matches for that call; nothing is retried.
type LiveProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewLiveProvider(endpoint, apiKey string, timeout time.Duration) *LiveProvider {
	if timeout <= 0 {
		timeout = defaultLiveTimeout
	}
	return &LiveProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *LiveProvider) Mode() string { return ModeLive }

func (p *LiveProvider) FindExternalMatches(ctx context.Context, text string) []models.SimilarityHit {
	if text == "" {
		return []models.SimilarityHit{}
	}

	hits, err := p.query(ctx, text)
	if err != nil {
		log.Warn().
			Err(err).
			Str("endpoint", p.endpoint).
			Msg("External similarity lookup failed, using simulated matches")
		metrics.ExternalLookups.WithLabelValues(metrics.LookupFallback).Inc()
		return simulateMatches(text)
	}

	metrics.ExternalLookups.WithLabelValues(metrics.LookupLive).Inc()
	log.Debug().Int("hits", len(hits)).Msg("External similarity lookup completed")
	return hits
}

type similarityRequest struct {
	Text string `json:"text"`
}

type similarityResponse struct {
	Results []json.RawMessage `json:"results"`
}

// similarityRecord is one result of the remote service. Fields are read one at a time so a
// field of the wrong type falls back to its default without losing the rest of the record.
type similarityRecord map[string]any

func (r similarityRecord) str(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok && v != ""
}

func (r similarityRecord) num(key string) (float64, bool) {
	v, ok := r[key].(float64)
	return v, ok && !math.IsNaN(v)
}

func (r similarityRecord) index(key string) (int, bool) {
	v, ok := r.num(key)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func (r similarityRecord) spans() []similarityRecord {
	raw, ok := r["matching_blocks"].([]any)
	if !ok {
		return nil
	}
	spans := make([]similarityRecord, 0, len(raw))
	for _, item := range raw {
		if span, ok := item.(map[string]any); ok {
			spans = append(spans, span)
		}
	}
	return spans
}

func (p *LiveProvider) query(ctx context.Context, text string) ([]models.SimilarityHit, error) {
	reqBody, err := json.Marshal(similarityRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLiveResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncateForLog(body))
	}

	var parsed similarityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	runes := []rune(text)
	hits := make([]models.SimilarityHit, 0, len(parsed.Results))
	for i, raw := range parsed.Results {
		var record similarityRecord
		if err := json.Unmarshal(raw, &record); err != nil || record == nil {
			log.Debug().Err(err).Int("index", i).Msg("Skipping similarity record that is not an object")
			continue
		}
		hit := record.toHit(i, runes)
		if hit.Score <= SignificanceFloor {
			continue
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// toHit maps a remote record, defaulting whatever is missing, mistyped or out of range.
func (r similarityRecord) toHit(index int, text []rune) models.SimilarityHit {
	spans := r.spans()
	hit := models.SimilarityHit{
		SourceName:          fmt.Sprintf("Published source %d", index+1),
		SourceKind:          models.SourcePublishedMaterial,
		ExternalSourceLabel: string(models.SourcePublishedMaterial),
		MatchingBlocks:      make([]models.MatchingBlock, 0, len(spans)),
	}
	if name, ok := r.str("document_name"); ok {
		hit.SourceName = name
	}
	if source, ok := r.str("source"); ok {
		hit.ExternalSourceLabel = source
	}
	if score, ok := r.num("similarity_score"); ok {
		hit.Score = clampUnit(score)
	}

	for _, span := range spans {
		aStart, okStart := span.index("a_start")
		aEnd, okEnd := span.index("a_end")
		length := aEnd - aStart
		if !okStart || !okEnd || aStart < 0 || aEnd > len(text) || length < DefaultMinBlockSize {
			continue
		}
		bStart, _ := span.index("b_start")
		bEnd, _ := span.index("b_end")
		snippet, ok := span.str("text")
		if !ok {
			snippet = string(text[aStart:aEnd])
		}
		hit.MatchingBlocks = append(hit.MatchingBlocks, models.MatchingBlock{
			SourceStart: aStart,
			SourceEnd:   aEnd,
			OtherStart:  bStart,
			OtherEnd:    bEnd,
			Length:      length,
			Snippet:     snippet,
		})
	}

	return hit
}

func truncateForLog(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
