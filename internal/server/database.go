package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	repo "github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

// ConnectDB opens the configured store and applies migrations.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	logger.Info("connecting to database", "postgres", repo.IsPostgresDSN(cfg.DSN))
	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if err := repo.Migrate(ctx, db, logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", db.Dialect())
	return db, nil
}

// PingDB returns a ping func bound to db, suitable for New.
func PingDB(db *repo.DB, logger *slog.Logger, timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return repo.HealthCheck(ctx, db, timeout, logger)
	}
}
