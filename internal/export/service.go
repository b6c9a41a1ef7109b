package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

// Service renders completed generations as downloadable artifacts.
type Service struct {
	generations repository.GenerationRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(gens repository.GenerationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{generations: gens, logger: logger, now: time.Now}
}

// ExportGeneration renders the epics of a completed generation. Processing
// and failed generations are rejected with ErrConflict.
func (s *Service) ExportGeneration(ctx context.Context, id int, f Format) (Artifact, error) {
	start := time.Now()

	g, found, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return Artifact{}, common.NewAppError(common.CodeInternal, "failed to load generation", errors.Join(common.ErrDatabase, err))
	}
	if !found {
		return Artifact{}, common.NotFoundErrorf("Generation not found")
	}
	if g.Status != constants.GenerationStatusCompleted {
		return Artifact{}, common.NewAppError(common.CodeNotCompleted,
			fmt.Sprintf("generation %d is %s; only completed generations can be exported", id, g.Status), common.ErrConflict)
	}

	epics, err := g.DecodeEpics()
	if err != nil {
		return Artifact{}, common.NewAppError(common.CodeInternal, "stored epics are unreadable", errors.Join(common.ErrInternal, err))
	}
	art, err := Render(epics, f, s.now())
	if err != nil {
		return Artifact{}, err
	}

	s.logger.Info("export.generation.ok",
		"generation_id", id,
		"format", string(f),
		"epics", len(epics),
		"bytes", len(art.Body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return art, nil
}
