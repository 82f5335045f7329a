package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/shared/postgresql"
)

// Storage owns the sessions, command_queue and player_snapshots relations.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the three relations if they do not exist. Safe to run
// on every startup.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			job_id    TEXT PRIMARY KEY,
			api_key   TEXT UNIQUE NOT NULL,
			last_ping TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS command_queue (
			id          BIGSERIAL PRIMARY KEY,
			api_key     TEXT NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL,
			payload     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS command_queue_api_key_idx ON command_queue (api_key)`,
		`CREATE TABLE IF NOT EXISTS player_snapshots (
			job_id       TEXT PRIMARY KEY,
			data         JSONB NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	s.logger.Info("Database schema ready")
	return nil
}

// SessionByAPIKey looks up the session holding the given apiKey.
func (s *Storage) SessionByAPIKey(ctx context.Context, apiKey string) (*domain.Session, error) {
	var session domain.Session
	query := `SELECT job_id, api_key, last_ping FROM sessions WHERE api_key = $1`

	err := s.db.GetContext(ctx, &session, query, apiKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by api key: %w", err)
	}

	return &session, nil
}

// SessionByJobID looks up the session for the given worker identity.
func (s *Storage) SessionByJobID(ctx context.Context, jobID string) (*domain.Session, error) {
	var session domain.Session
	query := `SELECT job_id, api_key, last_ping FROM sessions WHERE job_id = $1`

	err := s.db.GetContext(ctx, &session, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by job id: %w", err)
	}

	return &session, nil
}

// Heartbeat refreshes or creates the session binding jobID to apiKey. Any
// session matching the jobID or the apiKey but not both is a stale binding
// and is revoked first. The revoke and the upsert commit atomically, so the
// post-condition holds at every commit point even under concurrent
// heartbeats racing for the same apiKey: exactly one session holds this
// jobID and exactly one holds this apiKey.
func (s *Storage) Heartbeat(ctx context.Context, jobID, apiKey string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin heartbeat transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE (job_id = $1 OR api_key = $2)
		  AND NOT (job_id = $1 AND api_key = $2)
	`, jobID, apiKey)
	if err != nil {
		return fmt.Errorf("failed to revoke conflicting sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (job_id, api_key, last_ping)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_id) DO UPDATE
		SET api_key = EXCLUDED.api_key, last_ping = NOW()
	`, jobID, apiKey)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit heartbeat: %w", err)
	}

	return nil
}

// RevokeSession deletes the session for jobID and cascades to its command
// backlog and snapshot in one transaction. Revoking an unknown jobID is a
// no-op.
func (s *Storage) RevokeSession(ctx context.Context, jobID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin revoke transaction: %w", err)
	}
	defer tx.Rollback()

	var apiKey string
	err = tx.GetContext(ctx, &apiKey, `SELECT api_key FROM sessions WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to look up session for revoke: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM command_queue WHERE api_key = $1`, apiKey); err != nil {
		return fmt.Errorf("failed to delete command backlog: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM player_snapshots WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete player snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit revoke: %w", err)
	}

	s.logger.Info("Session revoked",
		slog.String("job_id", jobID),
	)

	return nil
}

// EnqueueCommand appends a command to the backlog owned by apiKey. The key
// must resolve to a session; the check and the insert share one transaction
// so an enqueue cannot land after its session was revoked. Returns the
// owning jobID.
func (s *Storage) EnqueueCommand(ctx context.Context, apiKey, payload string) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	var jobID string
	err = tx.GetContext(ctx, &jobID, `SELECT job_id FROM sessions WHERE api_key = $1`, apiKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_queue (api_key, enqueued_at, payload)
		VALUES ($1, NOW(), $2)
	`, apiKey, payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return jobID, nil
}

// DrainCommands removes and returns every queued command for apiKey in
// insertion order. Delete and select are one statement: a drained command is
// gone the instant it is returned, so redelivery never happens.
func (s *Storage) DrainCommands(ctx context.Context, apiKey string) ([]domain.QueuedCommand, error) {
	query := `
		WITH drained AS (
			DELETE FROM command_queue
			WHERE api_key = $1
			RETURNING id, api_key, enqueued_at, payload
		)
		SELECT id, api_key, enqueued_at, payload FROM drained ORDER BY id
	`

	var commands []domain.QueuedCommand
	if err := s.db.SelectContext(ctx, &commands, query, apiKey); err != nil {
		return nil, fmt.Errorf("failed to drain commands: %w", err)
	}

	return commands, nil
}

// Snapshot returns the last-known player snapshot for jobID.
func (s *Storage) Snapshot(ctx context.Context, jobID string) (*domain.PlayerSnapshot, error) {
	var snapshot domain.PlayerSnapshot
	query := `SELECT job_id, data, last_updated FROM player_snapshots WHERE job_id = $1`

	err := s.db.GetContext(ctx, &snapshot, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &snapshot, nil
}

// UpsertSnapshot stores the snapshot payload for jobID, last write wins.
func (s *Storage) UpsertSnapshot(ctx context.Context, jobID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_snapshots (job_id, data, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_id) DO UPDATE
		SET data = EXCLUDED.data, last_updated = NOW()
	`, jobID, data)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// AllSnapshots returns every stored snapshot; used by the admin queries.
func (s *Storage) AllSnapshots(ctx context.Context) ([]domain.PlayerSnapshot, error) {
	var snapshots []domain.PlayerSnapshot
	query := `SELECT job_id, data, last_updated FROM player_snapshots ORDER BY job_id`

	if err := s.db.SelectContext(ctx, &snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return snapshots, nil
}

// StaleSessions returns sessions whose heartbeat is older than cutoff.
// Sessions without a heartbeat are never reported.
func (s *Storage) StaleSessions(ctx context.Context, cutoff time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	query := `
		SELECT job_id, api_key, last_ping FROM sessions
		WHERE last_ping IS NOT NULL AND last_ping < $1
	`

	if err := s.db.SelectContext(ctx, &sessions, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}

	return sessions, nil
}
