package server

import (
	"context"
	"log/slog"
	"time"

	repo "github.com/joseph-ayodele/homework-solver/internal/repository"
)

// ConnectStateDB opens the sqlite status table and returns the repository.
func ConnectStateDB(ctx context.Context, path string, logger *slog.Logger) (*repo.SQLiteDocumentRepository, error) {
	logger.Info("connecting to state database", "path", path)
	docs, err := repo.OpenSQLite(ctx, path, logger)
	if err != nil {
		logger.Error("failed to open state database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to state database")
	return docs, nil
}

// PingStateDB pings the database to ensure it's responsive
func PingStateDB(ctx context.Context, docs *repo.SQLiteDocumentRepository, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging state database")
	if err := docs.HealthCheck(ctx, timeout); err != nil {
		logger.Error("state database ping failed", "error", err)
		return err
	}
	logger.Debug("state database ping successful")
	return nil
}

// CloseStateDB closes the database gracefully
func CloseStateDB(docs *repo.SQLiteDocumentRepository, logger *slog.Logger) {
	logger.Info("closing state database")
	if docs == nil {
		return
	}
	if err := docs.Close(); err != nil {
		logger.Error("failed to close state database", "error", err)
		return
	}
	logger.Info("state database closed")
}
