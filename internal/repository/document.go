package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, filename, content string, uploadedAt time.Time) (*entity.Document, error)
	// GetByID reports found=false, with a nil error, when no row has the id.
	GetByID(ctx context.Context, id int) (*entity.Document, bool, error)
	Count(ctx context.Context) (int, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{
		db:     db,
		logger: logger,
	}
}

func (r *documentRepo) Create(ctx context.Context, filename, content string, uploadedAt time.Time) (*entity.Document, error) {
	uploadedAt = normalizeTime(uploadedAt)
	ib := r.db.builder().
		Insert(DocumentsTable.Name).
		Columns("filename", "content", "uploaded_at").
		Values(filename, content, uploadedAt)

	id, err := r.db.insertID(ctx, ib)
	if err != nil {
		r.logger.Error("failed to create document", "filename", filename, "error", err)
		return nil, err
	}
	return &entity.Document{
		ID:         id,
		Filename:   filename,
		Content:    content,
		UploadedAt: uploadedAt,
	}, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int) (*entity.Document, bool, error) {
	b := r.db.builder()
	query, args := b.
		Select("id", "filename", "content", "uploaded_at").
		From(b.Table(DocumentsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	var doc entity.Document
	err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("failed to get document", "document_id", id, "error", err)
		return nil, false, err
	}
	doc.UploadedAt = doc.UploadedAt.UTC()
	return &doc, true, nil
}

func (r *documentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+DocumentsTable.Name).Scan(&n); err != nil {
		r.logger.Error("failed to count documents", "error", err)
		return 0, err
	}
	return n, nil
}

// normalizeTime keeps timestamps comparable after a round trip through either dialect.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
