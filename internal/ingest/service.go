package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/RishiKendai/paperlit/internal/extract"
	"github.com/RishiKendai/paperlit/internal/metrics"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/RishiKendai/paperlit/internal/repository"
	"github.com/RishiKendai/paperlit/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingName     = errors.New("document name is required")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Scorer computes the originality of a text against a named corpus.
type Scorer interface {
	CalculateOriginality(ctx context.Context, newText string, previousTexts, docNames []string) (float64, *models.OriginalityReport, error)
}

// StatusTracker records the scoring step of a document.
type StatusTracker interface {
	Update(ctx context.Context, documentID string, step models.Step) error
	Get(ctx context.Context, documentID string) (models.Step, error)
}

type Service struct {
	store  repository.DocumentStore
	files  storage.Storage
	scorer Scorer
	status StatusTracker
	now    func() time.Time
}

func NewService(store repository.DocumentStore, files storage.Storage, scorer Scorer, status StatusTracker) *Service {
	return &Service{
		store:  store,
		files:  files,
		scorer: scorer,
		status: status,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the file and records a pending document owned by userID.
func (s *Service) Upload(ctx context.Context, userID, name, filename string, data io.Reader) (*models.Document, error) {
	if err := validateUpload(name, filename); err != nil {
		return nil, err
	}

	fileID := uuid.New()
	storagePath, err := s.files.Upload(ctx, fileID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &models.Document{
		ID:          fileID.String(),
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Filename:    filename,
		StoragePath: storagePath,
		Status:      models.StatusPending,
		UploadedAt:  s.now(),
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		s.deleteFile(ctx, storagePath)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	log.Info().
		Str("documentId", doc.ID).
		Str("userId", userID).
		Str("filename", filename).
		Msg("Document uploaded")

	return doc, nil
}

// Replace swaps the file and name of an existing document and clears its previous result.
func (s *Service) Replace(ctx context.Context, userID, documentID, name, filename string, data io.Reader) (*models.Document, error) {
	if err := validateUpload(name, filename); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	storagePath, err := s.files.Upload(ctx, uuid.New(), filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	oldPath := doc.StoragePath
	doc.Name = strings.TrimSpace(name)
	doc.Filename = filename
	doc.StoragePath = storagePath
	doc.Status = models.StatusPending
	doc.OriginalityScore = nil
	doc.SimilarityDetails = nil
	doc.ScoredAt = nil
	doc.UploadedAt = s.now()

	if err := s.store.Update(ctx, doc); err != nil {
		s.deleteFile(ctx, storagePath)
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	s.deleteFile(ctx, oldPath)

	log.Info().
		Str("documentId", doc.ID).
		Str("userId", userID).
		Str("filename", filename).
		Msg("Document replaced")

	return doc, nil
}

// ScoreDocument scores a stored document against the owner's other documents and persists the result.
func (s *Service) ScoreDocument(ctx context.Context, userID, documentID string) (*models.Document, error) {
	doc, err := s.store.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	s.setStep(ctx, doc.ID, models.StepExtracting)

	newText := s.readText(ctx, doc)

	others, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	previousTexts := make([]string, 0, len(others))
	docNames := make([]string, 0, len(others))
	for _, other := range others {
		if other.ID == doc.ID {
			continue
		}
		text := s.readText(ctx, other)
		if text == "" {
			continue
		}
		previousTexts = append(previousTexts, text)
		docNames = append(docNames, other.Name)
	}

	s.setStep(ctx, doc.ID, models.StepScoring)

	score, report, err := s.scorer.CalculateOriginality(ctx, newText, previousTexts, docNames)
	if err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("failed to calculate originality: %w", err)
	}

	scoredAt := s.now()
	doc.OriginalityScore = &score
	doc.SimilarityDetails = report
	doc.Status = models.StatusCompleted
	doc.ScoredAt = &scoredAt

	if err := s.store.Update(ctx, doc); err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("failed to save score: %w", err)
	}

	s.setStep(ctx, doc.ID, models.StepCompleted)
	metrics.ScoringCount.WithLabelValues(models.StatusCompleted).Inc()

	log.Info().
		Str("documentId", doc.ID).
		Str("userId", userID).
		Int("corpus", len(previousTexts)).
		Float64("originality", score).
		Msg("Document scored")

	return doc, nil
}

// ScoreText scores raw text without touching stored documents.
func (s *Service) ScoreText(ctx context.Context, text string, previousTexts, docNames []string) (float64, *models.OriginalityReport, error) {
	return s.scorer.CalculateOriginality(ctx, text, previousTexts, docNames)
}

func (s *Service) GetDocument(ctx context.Context, userID, documentID string) (*models.Document, error) {
	return s.store.Get(ctx, userID, documentID)
}

func (s *Service) ListDocuments(ctx context.Context, userID string) ([]*models.Document, error) {
	return s.store.ListByUser(ctx, userID)
}

// Delete removes the document record and then its stored file. Later scoring no longer
// sees it in the owner's corpus.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.store.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.deleteFile(ctx, doc.StoragePath)

	log.Info().
		Str("documentId", doc.ID).
		Str("userId", userID).
		Msg("Document deleted")

	return nil
}

// DocumentFile is an open stored file. The caller closes Body.
type DocumentFile struct {
	Document    *models.Document
	ContentType string
	Body        io.ReadCloser
}

// Open returns the stored file of a document the user owns.
func (s *Service) Open(ctx context.Context, userID, documentID string) (*DocumentFile, error) {
	doc, err := s.store.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	rc, err := s.files.Download(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			log.Warn().Str("documentId", doc.ID).Str("storagePath", doc.StoragePath).Msg("Stored file is missing")
			return nil, fmt.Errorf("%w: %v", repository.ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &DocumentFile{
		Document:    doc,
		ContentType: viewContentType(doc.Filename),
		Body:        rc,
	}, nil
}

// Step returns the scoring step of a document the user owns.
func (s *Service) Step(ctx context.Context, userID, documentID string) (models.Step, error) {
	doc, err := s.store.Get(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	if s.status != nil {
		step, err := s.status.Get(ctx, doc.ID)
		if err != nil {
			return "", err
		}
		if step != models.StepIdle {
			return step, nil
		}
	}
	// The Redis entry expires; fall back to the persisted status.
	switch doc.Status {
	case models.StatusCompleted:
		return models.StepCompleted, nil
	case models.StatusFailed:
		return models.StepFailed, nil
	default:
		return models.StepIdle, nil
	}
}

// MarkQueued records that a document is waiting for asynchronous scoring.
func (s *Service) MarkQueued(ctx context.Context, documentID string) {
	s.setStep(ctx, documentID, models.StepQueued)
}

func (s *Service) readText(ctx context.Context, doc *models.Document) string {
	rc, err := s.files.Download(ctx, doc.StoragePath)
	if err != nil {
		log.Warn().Err(err).Str("documentId", doc.ID).Msg("Failed to load document file")
		return ""
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		log.Warn().Err(err).Str("documentId", doc.ID).Msg("Failed to read document file")
		return ""
	}
	return extract.Bytes(doc.Filename, raw)
}

func (s *Service) markFailed(ctx context.Context, doc *models.Document, cause error) {
	// Record the failure even when the request deadline is what caused it.
	ctx = context.WithoutCancel(ctx)
	log.Error().Err(cause).Str("documentId", doc.ID).Msg("Scoring failed")

	doc.Status = models.StatusFailed
	if err := s.store.Update(ctx, doc); err != nil {
		log.Error().Err(err).Str("documentId", doc.ID).Msg("Failed to record scoring failure")
	}
	s.setStep(ctx, doc.ID, models.StepFailed)
	metrics.ScoringCount.WithLabelValues(models.StatusFailed).Inc()
}

// setStep never fails the caller; the status key is advisory.
func (s *Service) setStep(ctx context.Context, documentID string, step models.Step) {
	if s.status == nil {
		return
	}
	if err := s.status.Update(ctx, documentID, step); err != nil {
		log.Warn().Err(err).Str("documentId", documentID).Str("step", string(step)).Msg("Failed to record scoring step")
	}
}

func (s *Service) deleteFile(ctx context.Context, storagePath string) {
	if storagePath == "" {
		return
	}
	if err := s.files.Delete(ctx, storagePath); err != nil {
		log.Warn().Err(err).Str("storagePath", storagePath).Msg("Failed to delete stored file")
	}
}

// viewContentType serves PDFs as PDFs and everything else as plain text.
func viewContentType(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	return "text/plain"
}

func validateUpload(name, filename string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if !extract.IsSupported(filename) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
	return nil
}
