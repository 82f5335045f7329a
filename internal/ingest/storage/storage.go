package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/robloxguru/gamebridge/internal/ingest/domain"
)

// Storage handles the database operations the ingest consumer needs
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// EnqueueCommand appends a command to the backlog owned by apiKey. The key
// check and the insert share one transaction, mirroring the HTTP enqueue
// path: a command can never land for a session revoked mid-flight.
func (s *Storage) EnqueueCommand(ctx context.Context, apiKey, payload string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	var jobID string
	err = tx.GetContext(ctx, &jobID, `SELECT job_id FROM sessions WHERE api_key = $1`, apiKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUnknownAPIKey
		}
		return fmt.Errorf("failed to resolve api key: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_queue (api_key, enqueued_at, payload)
		VALUES ($1, NOW(), $2)
	`, apiKey, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enqueue: %w", err)
	}

	s.logger.Info("Command enqueued from ingest",
		slog.String("job_id", jobID),
	)

	return nil
}
