package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

var (
	// ErrTerminalState is returned when a generation has already left processing.
	ErrTerminalState = errors.New("generation already in a terminal state")
	// ErrInvalidTransition is returned for an update whose target status is not terminal.
	ErrInvalidTransition = errors.New("invalid generation status transition")
)

// StatusUpdate is applied in a single statement: all fields land or none do.
type StatusUpdate struct {
	Status      constants.GenerationStatus
	Epics       json.RawMessage
	CompletedAt time.Time
}

type GenerationRepository interface {
	Create(ctx context.Context, documentID int) (*entity.Generation, error)
	// GetByID reports found=false, with a nil error, when no row has the id.
	GetByID(ctx context.Context, id int) (*entity.Generation, bool, error)
	// ListByDocument returns generations in insertion (id) order.
	ListByDocument(ctx context.Context, documentID int) ([]*entity.Generation, error)
	// UpdateStatus moves a processing generation to a terminal status. It returns
	// ErrTerminalState when the row already left processing, and found=false when
	// the id is unknown.
	UpdateStatus(ctx context.Context, id int, upd StatusUpdate) (*entity.Generation, bool, error)
	FinishSuccess(ctx context.Context, id int, epics []entity.Epic) (*entity.Generation, error)
	FinishFailure(ctx context.Context, id int, failure entity.FailurePayload) (*entity.Generation, error)
	// FailStale fails every processing generation created before cutoff.
	FailStale(ctx context.Context, cutoff time.Time, failure entity.FailurePayload) (int64, error)
	CountByStatus(ctx context.Context) (map[constants.GenerationStatus]int, error)
}

type generationRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewGenerationRepository(db *DB, logger *slog.Logger) GenerationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &generationRepo{
		db:     db,
		logger: logger,
	}
}

var generationColumns = []string{"id", "document_id", "epics", "status", "created_at", "completed_at"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*entity.Generation, error) {
	var (
		g           entity.Generation
		epics       []byte
		status      string
		completedAt sql.NullTime
	)
	if err := row.Scan(&g.ID, &g.DocumentID, &epics, &status, &g.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	g.Epics = json.RawMessage(epics)
	g.Status = constants.GenerationStatus(status)
	if !g.Status.Valid() {
		return nil, fmt.Errorf("generation %d has unknown status %q", g.ID, status)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		g.CompletedAt = &t
	}
	return &g, nil
}

func (r *generationRepo) Create(ctx context.Context, documentID int) (*entity.Generation, error) {
	createdAt := normalizeTime(time.Now())
	ib := r.db.builder().
		Insert(GenerationsTable.Name).
		Columns("document_id", "epics", "status", "created_at").
		Values(documentID, string(entity.EmptyEpics), string(constants.GenerationStatusProcessing), createdAt)

	id, err := r.db.insertID(ctx, ib)
	if err != nil {
		r.logger.Error("failed to create generation", "document_id", documentID, "error", err)
		return nil, err
	}
	return &entity.Generation{
		ID:         id,
		DocumentID: documentID,
		Epics:      entity.EmptyEpics,
		Status:     constants.GenerationStatusProcessing,
		CreatedAt:  createdAt,
	}, nil
}

func (r *generationRepo) GetByID(ctx context.Context, id int) (*entity.Generation, bool, error) {
	b := r.db.builder()
	query, args := b.
		Select(generationColumns...).
		From(b.Table(GenerationsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	g, err := scanGeneration(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("failed to get generation", "generation_id", id, "error", err)
		return nil, false, err
	}
	return g, true, nil
}

func (r *generationRepo) ListByDocument(ctx context.Context, documentID int) ([]*entity.Generation, error) {
	b := r.db.builder()
	query, args := b.
		Select(generationColumns...).
		From(b.Table(GenerationsTable.Name)).
		Where(entsql.EQ("document_id", documentID)).
		OrderBy("id").
		Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list generations", "document_id", documentID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]*entity.Generation, 0)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationRepo) UpdateStatus(ctx context.Context, id int, upd StatusUpdate) (*entity.Generation, bool, error) {
	if !upd.Status.IsTerminal() {
		return nil, false, fmt.Errorf("%w: to %q", ErrInvalidTransition, upd.Status)
	}
	if len(upd.Epics) == 0 {
		return nil, false, fmt.Errorf("%w: epics payload is required", ErrInvalidTransition)
	}
	completedAt := upd.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	query, args := r.db.builder().
		Update(GenerationsTable.Name).
		Set("status", string(upd.Status)).
		Set("epics", string(upd.Epics)).
		Set("completed_at", normalizeTime(completedAt)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(constants.GenerationStatusProcessing)),
		)).
		Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update generation status", "generation_id", id, "status", upd.Status, "error", err)
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	g, found, err := r.GetByID(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	if affected == 0 {
		r.logger.Warn("generation already terminal, update ignored",
			"generation_id", id, "current_status", g.Status, "requested_status", upd.Status)
		return g, true, ErrTerminalState
	}
	return g, true, nil
}

func (r *generationRepo) FinishSuccess(ctx context.Context, id int, epics []entity.Epic) (*entity.Generation, error) {
	if epics == nil {
		epics = []entity.Epic{}
	}
	payload, err := json.Marshal(epics)
	if err != nil {
		return nil, fmt.Errorf("encode epics: %w", err)
	}
	return r.finish(ctx, id, constants.GenerationStatusCompleted, payload)
}

func (r *generationRepo) FinishFailure(ctx context.Context, id int, failure entity.FailurePayload) (*entity.Generation, error) {
	payload, err := json.Marshal(failure)
	if err != nil {
		return nil, fmt.Errorf("encode failure: %w", err)
	}
	return r.finish(ctx, id, constants.GenerationStatusFailed, payload)
}

func (r *generationRepo) finish(ctx context.Context, id int, status constants.GenerationStatus, payload []byte) (*entity.Generation, error) {
	g, found, err := r.UpdateStatus(ctx, id, StatusUpdate{
		Status:      status,
		Epics:       payload,
		CompletedAt: time.Now(),
	})
	if err != nil {
		return g, err
	}
	if !found {
		return nil, common.NotFoundErrorf("generation %d not found", id)
	}
	return g, nil
}

func (r *generationRepo) FailStale(ctx context.Context, cutoff time.Time, failure entity.FailurePayload) (int64, error) {
	payload, err := json.Marshal(failure)
	if err != nil {
		return 0, fmt.Errorf("encode failure: %w", err)
	}
	query, args := r.db.builder().
		Update(GenerationsTable.Name).
		Set("status", string(constants.GenerationStatusFailed)).
		Set("epics", string(payload)).
		Set("completed_at", normalizeTime(time.Now())).
		Where(entsql.And(
			entsql.EQ("status", string(constants.GenerationStatusProcessing)),
			entsql.LT("created_at", normalizeTime(cutoff)),
		)).
		Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to fail stale generations", "cutoff", cutoff, "error", err)
		return 0, err
	}
	return res.RowsAffected()
}

func (r *generationRepo) CountByStatus(ctx context.Context) (map[constants.GenerationStatus]int, error) {
	rows, err := r.db.SQL.QueryContext(ctx, "SELECT status, COUNT(*) FROM "+GenerationsTable.Name+" GROUP BY status")
	if err != nil {
		r.logger.Error("failed to count generations", "error", err)
		return nil, err
	}
	defer rows.Close()

	counts := make(map[constants.GenerationStatus]int, len(constants.GenerationStatuses))
	for _, s := range constants.GenerationStatuses {
		counts[constants.GenerationStatus(s)] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[constants.GenerationStatus(status)] = n
	}
	return counts, rows.Err()
}
