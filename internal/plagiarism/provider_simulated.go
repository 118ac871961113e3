package plagiarism

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strconv"

	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/rs/zerolog/log"
)

// ExternalSignificanceFloor is the score a simulated published-material hit must exceed.
const ExternalSignificanceFloor = 0.1

const simulatedSpans = 3

var publishedCategories = []string{
	"Academic Journal",
	"Published Book",
	"Online Article",
	"Research Paper",
}

// SimulatedProvider derives published-material hits from the MD5 digest of the text,
// so the same text always yields the same hits.
type SimulatedProvider struct{}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{}
}

func (p *SimulatedProvider) FindExternalMatches(ctx context.Context, text string) []models.SimilarityHit {
	metrics.ExternalLookups.WithLabelValues(metrics.LookupSimulated).Inc()
	return simulateMatches(text)
}

func (p *SimulatedProvider) Mode() string { return ModeSimulated }

// simulateMatches reads fixed hex windows of the digest:
//
//	h[0]            score = nibble % 10 / 10
//	h[2i:2i+2]      span start, mod max(100, len/2)
//	h[2i+2:2i+4]    span length, mod 40 clamped to [10, 50]
//	h[5]            category index
func simulateMatches(text string) []models.SimilarityHit {
	if text == "" {
		return []models.SimilarityHit{}
	}

	sum := md5.Sum([]byte(text))
	digest := hex.EncodeToString(sum[:])
	runes := []rune(text)
	n := len(runes)

	score := float64(hexValue(digest[0:1])%10) / 10.0

	window := max(100, n/2)
	blocks := make([]models.MatchingBlock, 0, simulatedSpans)
	for i := 0; i < simulatedSpans; i++ {
		start := hexValue(digest[i*2:i*2+2]) % window
		length := min(50, max(10, hexValue(digest[i*2+2:i*2+4])%40))
		end := min(n, start+length)
		if start >= n || start >= end {
			continue
		}
		size := end - start
		if size < DefaultMinBlockSize {
			continue
		}
		blocks = append(blocks, models.MatchingBlock{
			SourceStart: start,
			SourceEnd:   end,
			OtherStart:  0,
			OtherEnd:    size,
			Length:      size,
			Snippet:     string(runes[start:end]),
		})
	}

	if score <= ExternalSignificanceFloor {
		return []models.SimilarityHit{}
	}

	category := publishedCategories[hexValue(digest[5:6])%len(publishedCategories)]

	log.Debug().
		Float64("similarity", score).
		Str("source", category).
		Int("blocks", len(blocks)).
		Msg("Simulated published-material similarity")

	return []models.SimilarityHit{{
		SourceName:          "AI-detected similarity in " + category,
		SourceKind:          models.SourcePublishedMaterial,
		Score:               score,
		MatchingBlocks:      blocks,
		ExternalSourceLabel: category,
	}}
}

// hexValue parses a lowercase hex window of an MD5 digest.
func hexValue(s string) int {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
