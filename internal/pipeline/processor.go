package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/async"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm"
	"github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

const defaultWriteTimeout = 10 * time.Second

// Processor runs one generation: load the document text, call the generator,
// and record exactly one terminal state.
type Processor struct {
	Logger       *slog.Logger
	Documents    repository.DocumentRepository
	Generations  repository.GenerationRepository
	Generator    llm.StoryGenerator
	WriteTimeout time.Duration
}

func NewProcessor(logger *slog.Logger, docs repository.DocumentRepository, gens repository.GenerationRepository, gen llm.StoryGenerator) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:       logger,
		Documents:    docs,
		Generations:  gens,
		Generator:    gen,
		WriteTimeout: defaultWriteTimeout,
	}
}

// Process implements async.JobProcessor.
func (p *Processor) Process(ctx context.Context, job async.Job) error {
	log := p.Logger.With("generation_id", job.GenerationID, "document_id", job.DocumentID, "req_id", job.RequestID)

	doc, found, err := p.Documents.GetByID(ctx, job.DocumentID)
	if err != nil {
		p.fail(ctx, job, FailureFor(ctx, fmt.Errorf("load document: %w", err)))
		return err
	}
	if !found {
		err := common.NotFoundErrorf("document %d not found", job.DocumentID)
		p.fail(ctx, job, entity.FailurePayload{Error: err.Message, Code: constants.FailureInternal})
		return err
	}

	result, err := p.Generator.Generate(ctx, doc.Content)
	if err != nil {
		failure := FailureFor(ctx, err)
		log.Warn("generation.failed", "code", failure.Code, "error", err)
		p.fail(ctx, job, failure)
		return err
	}

	wctx, cancel := p.writeContext(ctx)
	defer cancel()
	if _, err := p.Generations.FinishSuccess(wctx, job.GenerationID, result.Epics); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			log.Warn("generation.already_terminal", "outcome", constants.GenerationStatusCompleted)
			return nil
		}
		log.Error("generation.persist_failed", "error", err)
		return err
	}
	log.Info("generation.completed", "epics", len(result.Epics), "stories", result.StoryCount())
	return nil
}

// HandlePanic implements async.PanicHandler.
func (p *Processor) HandlePanic(job async.Job, recovered any) {
	p.Logger.Error("generation.panic", "generation_id", job.GenerationID, "panic", fmt.Sprint(recovered))
	p.fail(context.Background(), job, entity.FailurePayload{
		Error: "internal error during generation",
		Code:  constants.FailureInternal,
	})
}

func (p *Processor) fail(ctx context.Context, job async.Job, failure entity.FailurePayload) {
	wctx, cancel := p.writeContext(ctx)
	defer cancel()
	if _, err := p.Generations.FinishFailure(wctx, job.GenerationID, failure); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			p.Logger.Warn("generation.already_terminal", "generation_id", job.GenerationID, "outcome", constants.GenerationStatusFailed)
			return
		}
		p.Logger.Error("generation.record_failure_failed", "generation_id", job.GenerationID, "code", failure.Code, "error", err)
		return
	}
	p.Logger.Info("generation.recorded_failure", "generation_id", job.GenerationID, "code", failure.Code)
}

// writeContext detaches terminal writes from the job deadline so a timed-out
// job can still record its failure.
func (p *Processor) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.WriteTimeout
	if d <= 0 {
		d = defaultWriteTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// FailureFor maps a generation error to the payload stored on the failed row.
// A spent job deadline wins over whatever the transport reported.
func FailureFor(ctx context.Context, err error) entity.FailurePayload {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return entity.FailurePayload{Error: "generation timed out", Code: constants.FailureTimeout}
	case errors.Is(ctx.Err(), context.Canceled):
		return entity.FailurePayload{Error: "generation interrupted by shutdown", Code: constants.FailureInterrupted}
	}

	var lerr *llm.Error
	if errors.As(err, &lerr) {
		return entity.FailurePayload{Error: lerr.Message, Code: lerr.Code}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return entity.FailurePayload{Error: "generation timed out", Code: constants.FailureTimeout}
	case errors.Is(err, context.Canceled):
		return entity.FailurePayload{Error: "generation interrupted by shutdown", Code: constants.FailureInterrupted}
	}
	return entity.FailurePayload{Error: err.Error(), Code: constants.FailureInternal}
}
