package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/RishiKendai/paperlit/internal/plagiarism"
	"github.com/RishiKendai/paperlit/internal/repository"
	"github.com/RishiKendai/paperlit/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStatus struct {
	mu    sync.Mutex
	steps map[string][]models.Step
}

func newMemoryStatus() *memoryStatus {
	return &memoryStatus{steps: map[string][]models.Step{}}
}

func (m *memoryStatus) Update(ctx context.Context, documentID string, step models.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[documentID] = append(m.steps[documentID], step)
	return nil
}

func (m *memoryStatus) Get(ctx context.Context, documentID string) (models.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := m.steps[documentID]
	if len(steps) == 0 {
		return models.StepIdle, nil
	}
	return steps[len(steps)-1], nil
}

type failingScorer struct{}

func (failingScorer) CalculateOriginality(ctx context.Context, newText string, previousTexts, docNames []string) (float64, *models.OriginalityReport, error) {
	return 0, nil, errors.New("scorer unavailable")
}

// cancellingScorer ends the request context before delegating, as a deadline would mid-scoring.
type cancellingScorer struct {
	cancel context.CancelFunc
	inner  Scorer
}

func (c cancellingScorer) CalculateOriginality(ctx context.Context, newText string, previousTexts, docNames []string) (float64, *models.OriginalityReport, error) {
	c.cancel()
	return c.inner.CalculateOriginality(ctx, newText, previousTexts, docNames)
}

type fixture struct {
	svc    *Service
	store  *repository.SQLiteDocumentStore
	files  *storage.LocalStorage
	status *memoryStatus
}

func newFixture(t *testing.T, scorer Scorer) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := repository.OpenSQLite(filepath.Join(dir, "paperlit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	files, err := storage.NewLocalStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	if scorer == nil {
		scorer = plagiarism.NewAggregator(plagiarism.DisabledProvider{}, nil)
	}
	status := newMemoryStatus()
	return &fixture{
		svc:    NewService(store, files, scorer, status),
		store:  store,
		files:  files,
		status: status,
	}
}

func (f *fixture) upload(t *testing.T, userID, name, filename, content string) *models.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), userID, name, filename, strings.NewReader(content))
	require.NoError(t, err)
	return doc
}

func TestUploadRecordsPendingDocument(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "u1", "  First essay ", "essay.txt", "hello world")

	assert.Equal(t, "First essay", doc.Name)
	assert.Equal(t, models.StatusPending, doc.Status)
	assert.NotEmpty(t, doc.StoragePath)

	stored, err := f.store.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.StoragePath, stored.StoragePath)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, "u1", " ", "essay.txt", strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrMissingName))

	_, err = f.svc.Upload(ctx, "u1", "Slides", "deck.pptx", strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
}

func TestScoreFirstDocumentIsOriginal(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "u1", "Only essay", "essay.txt", "hello world")

	scored, err := f.svc.ScoreDocument(context.Background(), "u1", doc.ID)
	require.NoError(t, err)

	require.NotNil(t, scored.OriginalityScore)
	assert.Equal(t, 1.0, *scored.OriginalityScore)
	assert.Equal(t, models.StatusCompleted, scored.Status)
	assert.NotNil(t, scored.ScoredAt)
	assert.False(t, scored.SimilarityDetails.HasHits())
	assert.Equal(t, []models.Step{models.StepExtracting, models.StepScoring, models.StepCompleted}, f.status.steps[doc.ID])
}

func TestScoreAgainstOwnDocumentsOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "u1", "Earlier essay", "earlier.txt", "hello world")
	f.upload(t, "u1", "Blank notes", "blank.txt", "")
	f.upload(t, "u2", "Someone else", "other.txt", "hello world")
	doc := f.upload(t, "u1", "New essay", "new.txt", "hello world")

	scored, err := f.svc.ScoreDocument(context.Background(), "u1", doc.ID)
	require.NoError(t, err)

	assert.Equal(t, 0.0, *scored.OriginalityScore)
	require.Len(t, scored.SimilarityDetails.SimilarHits, 1)
	assert.Equal(t, "Earlier essay", scored.SimilarityDetails.SimilarHits[0].SourceName)

	stored, err := f.store.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, scored.SimilarityDetails, stored.SimilarityDetails)
}

func TestScoreUnknownDocument(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "u1", "Essay", "essay.txt", "hello world")

	_, err := f.svc.ScoreDocument(context.Background(), "u2", doc.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestScoreFailureIsRecorded(t *testing.T) {
	f := newFixture(t, failingScorer{})
	doc := f.upload(t, "u1", "Essay", "essay.txt", "hello world")

	_, err := f.svc.ScoreDocument(context.Background(), "u1", doc.ID)
	require.Error(t, err)

	stored, err := f.store.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)

	step, err := f.svc.Step(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, step)
}

func TestScoreCancelledMidwayIsRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, cancellingScorer{cancel: cancel, inner: plagiarism.NewAggregator(nil, nil)})
	f.upload(t, "u1", "Earlier essay", "earlier.txt", "hello world")
	doc := f.upload(t, "u1", "New essay", "new.txt", "hello world")

	_, err := f.svc.ScoreDocument(ctx, "u1", doc.ID)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.store.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Nil(t, stored.OriginalityScore)
}

func TestDeletedDocumentLeavesCorpus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	earlier := f.upload(t, "u1", "Earlier essay", "earlier.txt", "hello world")
	doc := f.upload(t, "u1", "New essay", "new.txt", "hello world")

	scored, err := f.svc.ScoreDocument(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *scored.OriginalityScore)

	require.NoError(t, f.svc.Delete(ctx, "u1", earlier.ID))

	_, err = f.store.Get(ctx, "u1", earlier.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = f.files.Download(ctx, earlier.StoragePath)
	assert.True(t, errors.Is(err, storage.ErrFileNotFound))

	rescored, err := f.svc.ScoreDocument(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *rescored.OriginalityScore)
	assert.False(t, rescored.SimilarityDetails.HasHits())
}

func TestDeleteRequiresOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.upload(t, "u1", "Essay", "essay.txt", "hello world")

	err := f.svc.Delete(ctx, "u2", doc.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	rc, err := f.files.Download(ctx, doc.StoragePath)
	require.NoError(t, err)
	_ = rc.Close()
}

func TestOpenServesStoredFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	txt := f.upload(t, "u1", "Essay", "essay.txt", "hello world")
	pdf := f.upload(t, "u1", "Paper", "Paper.PDF", "%PDF-1.4 not really")

	file, err := f.svc.Open(ctx, "u1", txt.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(file.Body)
	require.NoError(t, file.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, "text/plain", file.ContentType)
	assert.Equal(t, "essay.txt", file.Document.Filename)

	file, err = f.svc.Open(ctx, "u1", pdf.ID)
	require.NoError(t, err)
	_ = file.Body.Close()
	assert.Equal(t, "application/pdf", file.ContentType)

	_, err = f.svc.Open(ctx, "u2", txt.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestOpenMissingFileIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.upload(t, "u1", "Essay", "essay.txt", "hello world")
	require.NoError(t, f.files.Delete(ctx, doc.StoragePath))

	_, err := f.svc.Open(ctx, "u1", doc.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestReplaceSwapsFileAndClearsScore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.upload(t, "u1", "Draft", "draft.txt", "first version")
	_, err := f.svc.ScoreDocument(ctx, "u1", doc.ID)
	require.NoError(t, err)
	oldPath := doc.StoragePath

	replaced, err := f.svc.Replace(ctx, "u1", doc.ID, "Final", "final.txt", strings.NewReader("second version"))
	require.NoError(t, err)

	assert.Equal(t, doc.ID, replaced.ID)
	assert.Equal(t, "Final", replaced.Name)
	assert.Equal(t, models.StatusPending, replaced.Status)
	assert.Nil(t, replaced.OriginalityScore)
	assert.Nil(t, replaced.SimilarityDetails)
	assert.NotEqual(t, oldPath, replaced.StoragePath)

	_, err = f.files.Download(ctx, oldPath)
	assert.True(t, errors.Is(err, storage.ErrFileNotFound))
}

func TestReplaceRequiresOwnership(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "u1", "Draft", "draft.txt", "text")

	_, err := f.svc.Replace(context.Background(), "u2", doc.ID, "Mine", "mine.txt", strings.NewReader("text"))
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestStepFallsBackToStoredStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.upload(t, "u1", "Essay", "essay.txt", "hello")

	step, err := f.svc.Step(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepIdle, step)

	f.svc.MarkQueued(ctx, doc.ID)
	step, err = f.svc.Step(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepQueued, step)

	// An expired status key leaves only the persisted result.
	_, err = f.svc.ScoreDocument(ctx, "u1", doc.ID)
	require.NoError(t, err)
	delete(f.status.steps, doc.ID)
	step, err = f.svc.Step(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, step)
}

func TestScoreText(t *testing.T) {
	f := newFixture(t, nil)
	score, report, err := f.svc.ScoreText(context.Background(), "hello world", []string{"hello world"}, []string{"doc1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, "doc1", report.SimilarHits[0].SourceName)
}
