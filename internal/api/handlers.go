package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/RishiKendai/paperlit/internal/config"
	"github.com/RishiKendai/paperlit/internal/ingest"
	"github.com/RishiKendai/paperlit/internal/models"
	"github.com/RishiKendai/paperlit/internal/plagiarism"
	"github.com/RishiKendai/paperlit/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// DocumentService is the document workflow behind the HTTP API.
type DocumentService interface {
	Upload(ctx context.Context, userID, name, filename string, data io.Reader) (*models.Document, error)
	Replace(ctx context.Context, userID, documentID, name, filename string, data io.Reader) (*models.Document, error)
	ScoreDocument(ctx context.Context, userID, documentID string) (*models.Document, error)
	ScoreText(ctx context.Context, text string, previousTexts, docNames []string) (float64, *models.OriginalityReport, error)
	GetDocument(ctx context.Context, userID, documentID string) (*models.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]*models.Document, error)
	Step(ctx context.Context, userID, documentID string) (models.Step, error)
	MarkQueued(ctx context.Context, documentID string)
	Delete(ctx context.Context, userID, documentID string) error
	Open(ctx context.Context, userID, documentID string) (*ingest.DocumentFile, error)
}

// JobQueue hands documents to the asynchronous scorer.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.ScoreJob) (string, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg            *config.Config
	docs           DocumentService
	queue          JobQueue
	computeSem     chan struct{} // Semaphore for bounded concurrency
	computeTimeout time.Duration
}

// NewHandler scores inline when queue is nil or asynchronous scoring is disabled.
func NewHandler(cfg *config.Config, docs DocumentService, queue JobQueue) *Handler {
	sem := make(chan struct{}, cfg.MaxConcurrentCompute)

	return &Handler{
		cfg:            cfg,
		docs:           docs,
		queue:          queue,
		computeSem:     sem,
		computeTimeout: cfg.ComputationTimeout,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (h *Handler) UploadDocument(c *gin.Context) {
	name, header, ok := h.readUploadForm(c)
	if !ok {
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read uploaded file", "INVALID_FILE")
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	doc, err := h.docs.Upload(ctx, userID(c), name, header.Filename, file)
	if err != nil {
		h.writeServiceError(c, err, "Failed to upload document")
		return
	}

	h.scoreOrQueue(c, doc, http.StatusCreated)
}

func (h *Handler) ReplaceDocument(c *gin.Context) {
	name, header, ok := h.readUploadForm(c)
	if !ok {
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read uploaded file", "INVALID_FILE")
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	doc, err := h.docs.Replace(ctx, userID(c), c.Param("id"), name, header.Filename, file)
	if err != nil {
		h.writeServiceError(c, err, "Failed to replace document")
		return
	}

	h.scoreOrQueue(c, doc, http.StatusOK)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.docs.ListDocuments(c.Request.Context(), userID(c))
	if err != nil {
		h.writeServiceError(c, err, "Failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.docs.GetDocument(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err, "Failed to load document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.writeServiceError(c, err, "Failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

// DocumentFile streams the stored file inline, or as an attachment with ?download=true.
func (h *Handler) DocumentFile(c *gin.Context) {
	file, err := h.docs.Open(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err, "Failed to open document file")
		return
	}
	defer file.Body.Close()

	disposition := "inline"
	if c.Query("download") == "true" {
		disposition = "attachment"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": file.Document.Filename}),
	}
	c.DataFromReader(http.StatusOK, -1, file.ContentType, file.Body, headers)
}

func (h *Handler) DocumentStatus(c *gin.Context) {
	documentID := c.Param("id")
	step, err := h.docs.Step(c.Request.Context(), userID(c), documentID)
	if err != nil {
		h.writeServiceError(c, err, "Failed to load status")
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{DocumentID: documentID, Step: step})
}

// CalculateOriginality scores raw text against a caller supplied corpus.
func (h *Handler) CalculateOriginality(c *gin.Context) {
	var req models.OriginalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	ctx, release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	score, report, err := h.docs.ScoreText(ctx, req.Text, req.PreviousTexts, req.DocNames)
	if err != nil {
		h.writeServiceError(c, err, "Failed to calculate originality")
		return
	}

	c.JSON(http.StatusOK, models.OriginalityResponse{
		OriginalityScore: score,
		Report:           report,
	})
}

func (h *Handler) scoreOrQueue(c *gin.Context, doc *models.Document, syncStatus int) {
	if h.cfg.AsyncScoring && h.queue != nil {
		ctx := c.Request.Context()
		if _, err := h.queue.Enqueue(ctx, &models.ScoreJob{DocumentID: doc.ID, UserID: doc.UserID}); err != nil {
			log.Error().Err(err).Str("documentId", doc.ID).Msg("Failed to enqueue scoring job")
			abortWithError(c, http.StatusServiceUnavailable, "Scoring queue unavailable", "QUEUE_UNAVAILABLE")
			return
		}
		// Only a job that reached the stream is reported as queued.
		h.docs.MarkQueued(ctx, doc.ID)

		c.JSON(http.StatusAccepted, models.UploadResponse{
			Step:       models.StepQueued,
			DocumentID: doc.ID,
		})
		return
	}

	ctx, release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	scored, err := h.docs.ScoreDocument(ctx, doc.UserID, doc.ID)
	if err != nil {
		h.writeServiceError(c, err, "Failed to score document")
		return
	}
	c.JSON(syncStatus, scored)
}

// acquire takes a compute slot and returns a context bounded by the computation timeout.
func (h *Handler) acquire(c *gin.Context) (context.Context, func(), bool) {
	reqCtx := c.Request.Context()

	select {
	case h.computeSem <- struct{}{}:
	case <-reqCtx.Done():
		abortWithError(c, http.StatusRequestTimeout, "Request cancelled", "REQUEST_TIMEOUT")
		return nil, nil, false
	}

	ctx, cancel := context.WithTimeout(reqCtx, h.computeTimeout)
	release := func() {
		cancel()
		<-h.computeSem
	}
	return ctx, release, true
}

func (h *Handler) readUploadForm(c *gin.Context) (string, *multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)

	header, err := c.FormFile("document_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "Uploaded file is too large", "FILE_TOO_LARGE")
			return "", nil, false
		}
		abortWithError(c, http.StatusBadRequest, "Both document name and file are required", "INVALID_REQUEST")
		return "", nil, false
	}

	name := c.PostForm("document_name")
	if name == "" {
		abortWithError(c, http.StatusBadRequest, "Both document name and file are required", "INVALID_REQUEST")
		return "", nil, false
	}
	return name, header, true
}

func (h *Handler) writeServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Document not found", "DOCUMENT_NOT_FOUND")
	case errors.Is(err, ingest.ErrMissingName):
		abortWithError(c, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
	case errors.Is(err, ingest.ErrUnsupportedFile):
		abortWithError(c, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FILE_TYPE")
	case errors.Is(err, plagiarism.ErrCorpusMismatch):
		abortWithError(c, http.StatusBadRequest, err.Error(), "CORPUS_MISMATCH")
	case errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusGatewayTimeout, "Computation timed out", "COMPUTATION_TIMEOUT")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		abortWithError(c, http.StatusInternalServerError, message, "INTERNAL_ERROR")
	}
}

func abortWithError(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
