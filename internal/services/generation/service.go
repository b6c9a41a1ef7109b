package generation

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/async"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/extract"
	"github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

const (
	UploadAcceptedMessage     = "Document uploaded successfully. Processing started."
	RegenerateAcceptedMessage = "Generation started."
)

// Service coordinates upload, extraction, record creation and generation
// scheduling. It never waits for a generation to finish.
type Service struct {
	extractor   extract.TextExtractor
	documents   repository.DocumentRepository
	generations repository.GenerationRepository
	queue       async.Queue
	maxBytes    int64
	logger      *slog.Logger
}

// NewService creates a new generation service. maxBytes <= 0 uses constants.MaxUploadBytesDefault.
func NewService(ex extract.TextExtractor, docs repository.DocumentRepository, gens repository.GenerationRepository, q async.Queue, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytesDefault
	}
	return &Service{
		extractor:   ex,
		documents:   docs,
		generations: gens,
		queue:       q,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// UploadRequest describes a file already spooled to disk. Path is removed by Upload.
type UploadRequest struct {
	Filename string
	Path     string
	Size     int64
}

// StartResult is returned as soon as the generation row exists.
type StartResult struct {
	DocumentID   int    `json:"documentId"`
	GenerationID int    `json:"generationId"`
	Message      string `json:"message"`
}

// Upload extracts the text of an uploaded file, stores the Document and a
// processing Generation, and schedules the generation.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (StartResult, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	if strings.TrimSpace(req.Path) == "" {
		return StartResult{}, common.ValidationErrorf(common.CodeNoFile, "No file uploaded")
	}
	defer s.removeTemp(log, req.Path)

	v := common.NewValidator().
		Field("filename", req.Filename, common.Required).
		Field("size", req.Size, common.MaxBytes(s.maxBytes))
	if appErr := v.AppError(); appErr != nil {
		log.Warn("upload rejected", "filename", req.Filename, "size", req.Size, "code", appErr.Code)
		return StartResult{}, appErr
	}

	res, err := s.extractor.Extract(ctx, req.Path, req.Filename)
	s.removeTemp(log, req.Path)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			return StartResult{}, common.NewAppError(common.CodeUnsupportedFormat, "Unsupported file type", errors.Join(common.ErrValidation, err))
		}
		return StartResult{}, common.NewAppError(common.CodeExtractionFailed, "Failed to process file: "+err.Error(), errors.Join(common.ErrValidation, err))
	}

	if strings.TrimSpace(res.Text) == "" {
		log.Warn("upload rejected: empty document", "filename", req.Filename)
		return StartResult{}, common.ValidationErrorf(common.CodeEmptyDocument, "Document appears to be empty or unreadable")
	}

	doc, err := s.documents.Create(ctx, req.Filename, res.Text, time.Now())
	if err != nil {
		return StartResult{}, common.NewAppError(common.CodeInternal, "failed to store document", errors.Join(common.ErrDatabase, err))
	}
	log.Info("document stored", "document_id", doc.ID, "filename", doc.Filename, "format", res.Format, "chars", len(res.Text))

	genID, err := s.start(ctx, doc.ID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{DocumentID: doc.ID, GenerationID: genID, Message: UploadAcceptedMessage}, nil
}

// Regenerate starts a new Generation for an existing Document.
func (s *Service) Regenerate(ctx context.Context, documentID int) (StartResult, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return StartResult{}, err
	}
	genID, err := s.start(ctx, doc.ID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{DocumentID: doc.ID, GenerationID: genID, Message: RegenerateAcceptedMessage}, nil
}

// start creates the processing row and hands it to the queue. A rejected
// enqueue is recorded on the row, and the ids are still returned.
func (s *Service) start(ctx context.Context, documentID int) (int, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	gen, err := s.generations.Create(ctx, documentID)
	if err != nil {
		return 0, common.NewAppError(common.CodeInternal, "failed to create generation", errors.Join(common.ErrDatabase, err))
	}

	job := async.Job{
		GenerationID: gen.ID,
		DocumentID:   documentID,
		RequestID:    common.RequestIDFromContext(ctx),
		SubmittedAt:  time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		failure := entity.FailurePayload{Error: "generation queue is full, try again later", Code: constants.FailureQueueFull}
		if errors.Is(err, async.ErrQueueClosed) {
			failure = entity.FailurePayload{Error: "server is shutting down, try again later", Code: constants.FailureInterrupted}
		}
		log.Warn("enqueue rejected", "generation_id", gen.ID, "code", failure.Code, "error", err)
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, ferr := s.generations.FinishFailure(wctx, gen.ID, failure); ferr != nil {
			log.Error("failed to record enqueue rejection", "generation_id", gen.ID, "error", ferr)
		}
		return gen.ID, nil
	}
	log.Info("generation scheduled", "generation_id", gen.ID, "document_id", documentID)
	return gen.ID, nil
}

// GetGeneration returns the current record, or a NOT_FOUND AppError.
func (s *Service) GetGeneration(ctx context.Context, id int) (*entity.Generation, error) {
	g, found, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to load generation", errors.Join(common.ErrDatabase, err))
	}
	if !found {
		return nil, common.NotFoundErrorf("Generation not found")
	}
	return g, nil
}

// ListGenerations returns the generations of a document in creation order. An
// unknown document yields an empty list.
func (s *Service) ListGenerations(ctx context.Context, documentID int) ([]*entity.Generation, error) {
	list, err := s.generations.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to list generations", errors.Join(common.ErrDatabase, err))
	}
	return list, nil
}

// GetDocument returns the document, or a NOT_FOUND AppError.
func (s *Service) GetDocument(ctx context.Context, id int) (*entity.Document, error) {
	d, found, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to load document", errors.Join(common.ErrDatabase, err))
	}
	if !found {
		return nil, common.NotFoundErrorf("Document not found")
	}
	return d, nil
}

// SweepStale fails processing generations older than olderThan with code
// INTERRUPTED. It is meant to run once at startup, before the queue accepts work.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	n, err := s.generations.FailStale(ctx, cutoff, entity.FailurePayload{
		Error: "generation was interrupted before it finished; start a new one",
		Code:  constants.FailureInterrupted,
	})
	if err != nil {
		return 0, common.NewAppError(common.CodeInternal, "failed to sweep stale generations", errors.Join(common.ErrDatabase, err))
	}
	s.logger.Info("stale generations swept", "count", n, "cutoff", cutoff)
	return n, nil
}

func (s *Service) removeTemp(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove upload temp file", "path", path, "error", err)
	}
}
