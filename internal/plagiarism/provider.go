package plagiarism

import (
	"context"

	"github.com/RishiKendai/paperlit/internal/config"
	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/rs/zerolog/log"
)

// Provider modes.
const (
	ModeDisabled  = "disabled"
	ModeSimulated = "simulated"
	ModeLive      = "live"
)

// ExternalSimilarityProvider looks a text up against published material.
// Implementations never fail: problems degrade to fewer or simulated hits.
type ExternalSimilarityProvider interface {
	FindExternalMatches(ctx context.Context, text string) []models.SimilarityHit
	Mode() string
}

// NewExternalSimilarityProvider picks the provider variant once, from configuration.
func NewExternalSimilarityProvider(cfg config.SimilarityConfig) ExternalSimilarityProvider {
	var provider ExternalSimilarityProvider
	switch {
	case !cfg.Enabled:
		provider = DisabledProvider{}
	case cfg.Endpoint == "" || cfg.APIKey == "" || cfg.APIKey == config.DemoAPIKey:
		provider = NewSimulatedProvider()
	default:
		provider = NewLiveProvider(cfg.Endpoint, cfg.APIKey, cfg.Timeout)
	}

	log.Info().Str("mode", provider.Mode()).Msg("External similarity provider selected")
	return provider
}

// DisabledProvider is used when external lookups are switched off.
type DisabledProvider struct{}

func (DisabledProvider) FindExternalMatches(ctx context.Context, text string) []models.SimilarityHit {
	metrics.ExternalLookups.WithLabelValues(metrics.LookupDisabled).Inc()
	return []models.SimilarityHit{}
}

func (DisabledProvider) Mode() string { return ModeDisabled }
