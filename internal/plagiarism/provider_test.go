package plagiarism

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RishiKendai/paperlit/internal/config"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loremText = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris."

func TestNewExternalSimilarityProviderSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SimilarityConfig
		want string
	}{
		{"disabled", config.SimilarityConfig{Enabled: false, Endpoint: "http://x", APIKey: "k"}, ModeDisabled},
		{"demo key", config.SimilarityConfig{Enabled: true, Endpoint: "http://x", APIKey: config.DemoAPIKey}, ModeSimulated},
		{"no key", config.SimilarityConfig{Enabled: true, Endpoint: "http://x"}, ModeSimulated},
		{"no endpoint", config.SimilarityConfig{Enabled: true, APIKey: "k"}, ModeSimulated},
		{"live", config.SimilarityConfig{Enabled: true, Endpoint: "http://x", APIKey: "k", Timeout: time.Second}, ModeLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewExternalSimilarityProvider(tt.cfg).Mode())
		})
	}
}

func TestDisabledProviderReturnsNothing(t *testing.T) {
	assert.Empty(t, DisabledProvider{}.FindExternalMatches(context.Background(), loremText))
}

func TestSimulatedProviderKnownDigest(t *testing.T) {
	hits := NewSimulatedProvider().FindExternalMatches(context.Background(), loremText)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Equal(t, "AI-detected similarity in Online Article", hit.SourceName)
	assert.Equal(t, models.SourcePublishedMaterial, hit.SourceKind)
	assert.Equal(t, "Online Article", hit.ExternalSourceLabel)
	assert.Equal(t, 0.7, hit.Score)

	runes := []rune(loremText)
	wantSpans := [][2]int{{25, 62}, {17, 27}, {46, 75}}
	require.Len(t, hit.MatchingBlocks, len(wantSpans))
	for i, span := range wantSpans {
		blk := hit.MatchingBlocks[i]
		assert.Equal(t, span[0], blk.SourceStart)
		assert.Equal(t, span[1], blk.SourceEnd)
		assert.Equal(t, span[1]-span[0], blk.Length)
		assert.Equal(t, 0, blk.OtherStart)
		assert.Equal(t, blk.Length, blk.OtherEnd)
		assert.Equal(t, string(runes[span[0]:span[1]]), blk.Snippet)
	}
}

func TestSimulatedProviderDropsOutOfRangeSpans(t *testing.T) {
	// Every derived span of this short text starts past its end.
	hits := simulateMatches("hello world")
	require.Len(t, hits, 1)
	assert.Equal(t, 0.5, hits[0].Score)
	assert.Equal(t, "Research Paper", hits[0].ExternalSourceLabel)
	assert.Empty(t, hits[0].MatchingBlocks)

	// One span survives the bounds check but is shorter than a block.
	hits = simulateMatches("abc")
	require.Len(t, hits, 1)
	assert.Equal(t, 0.9, hits[0].Score)
	assert.Empty(t, hits[0].MatchingBlocks)
}

func TestSimulatedProviderScoreFloor(t *testing.T) {
	// Digest scores: "a" -> 0.0, "yes" -> 0.0, repeated fox sentence -> 0.1 (not above the floor).
	assert.Empty(t, simulateMatches("a"))
	assert.Empty(t, simulateMatches("yes"))

	fox := ""
	for i := 0; i < 6; i++ {
		fox += "The quick brown fox jumps over the lazy dog. "
	}
	assert.Empty(t, simulateMatches(fox))
	assert.Empty(t, simulateMatches(""))
}

func TestSimulatedProviderDeterministic(t *testing.T) {
	p := NewSimulatedProvider()
	first := p.FindExternalMatches(context.Background(), loremText)
	second := p.FindExternalMatches(context.Background(), loremText)
	assert.Equal(t, first, second)
}

func TestLiveProviderMapsResults(t *testing.T) {
	var gotAuth, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotText = body["text"]

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"document_name": "Journal of Things", "similarity_score": 0.42, "source": "Academic Journal",
			 "matching_blocks": [{"a_start": 0, "a_end": 11, "b_start": 100, "b_end": 111, "size": 11, "text": "Lorem ipsum"}]},
			{"similarity_score": 1.7, "matching_blocks": [{"a_start": 6, "a_end": 17}, {"a_start": 180, "a_end": 400}]},
			{"document_name": "Too weak", "similarity_score": 0.005},
			{"document_name": 12}
		]}`))
	}))
	defer server.Close()

	p := NewLiveProvider(server.URL, "secret-key", time.Second)
	hits := p.FindExternalMatches(context.Background(), loremText)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, loremText, gotText)
	require.Len(t, hits, 2)

	assert.Equal(t, "Journal of Things", hits[0].SourceName)
	assert.Equal(t, 0.42, hits[0].Score)
	assert.Equal(t, "Academic Journal", hits[0].ExternalSourceLabel)
	require.Len(t, hits[0].MatchingBlocks, 1)
	assert.Equal(t, "Lorem ipsum", hits[0].MatchingBlocks[0].Snippet)

	assert.Equal(t, "Published source 2", hits[1].SourceName)
	assert.Equal(t, 1.0, hits[1].Score)
	assert.Equal(t, string(models.SourcePublishedMaterial), hits[1].ExternalSourceLabel)
	require.Len(t, hits[1].MatchingBlocks, 1)
	assert.Equal(t, "ipsum dolor", hits[1].MatchingBlocks[0].Snippet)
	assert.Equal(t, 11, hits[1].MatchingBlocks[0].Length)
}

func TestLiveProviderDefaultsMistypedFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			"not a record",
			null,
			{"document_name": 12, "similarity_score": 0.5, "source": ["Online Article"],
			 "matching_blocks": [{"a_start": "0", "a_end": 11}, {"a_start": 0, "a_end": 11, "b_start": "x", "text": 5}, 7]},
			{"document_name": "Scored as text", "similarity_score": "0.9"}
		]}`))
	}))
	defer server.Close()

	hits := NewLiveProvider(server.URL, "key", time.Second).FindExternalMatches(context.Background(), loremText)

	require.Len(t, hits, 1)
	hit := hits[0]
	assert.Equal(t, "Published source 3", hit.SourceName)
	assert.Equal(t, 0.5, hit.Score)
	assert.Equal(t, string(models.SourcePublishedMaterial), hit.ExternalSourceLabel)
	require.Len(t, hit.MatchingBlocks, 1)
	assert.Equal(t, models.MatchingBlock{SourceStart: 0, SourceEnd: 11, Length: 11, Snippet: "Lorem ipsum"}, hit.MatchingBlocks[0])
}

func TestLiveProviderFallsBackToSimulated(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results": [`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"results": []}`))
		}},
	}

	want := simulateMatches(loremText)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewLiveProvider(server.URL, "secret-key", 50*time.Millisecond)
			assert.Equal(t, want, p.FindExternalMatches(context.Background(), loremText))
		})
	}
}

func TestLiveProviderFallsBackWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewLiveProvider(url, "secret-key", 100*time.Millisecond)
	assert.Equal(t, simulateMatches(loremText), p.FindExternalMatches(context.Background(), loremText))
}

func TestLiveProviderSkipsEmptyText(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	p := NewLiveProvider(server.URL, "secret-key", time.Second)
	assert.Empty(t, p.FindExternalMatches(context.Background(), ""))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
