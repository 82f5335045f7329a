package domain

import (
	"database/sql"
	"time"
)

// Session is the live binding between a worker identity (jobId) and its
// current bearer credential (apiKey). At most one session exists per jobId
// and per apiKey at any time.
type Session struct {
	JobID    string       `db:"job_id"`
	APIKey   string       `db:"api_key"`
	LastPing sql.NullTime `db:"last_ping"`
}

// StaleAt reports whether the session's heartbeat age exceeds threshold at
// the given instant. Sessions that never pinged are not considered stale.
func (s *Session) StaleAt(now time.Time, threshold time.Duration) bool {
	if !s.LastPing.Valid {
		return false
	}
	return now.Sub(s.LastPing.Time) > threshold
}

// QueuedCommand is one pending command in a session's backlog. Commands are
// consume-once: a drain removes them the instant they are handed out.
type QueuedCommand struct {
	ID         int64     `db:"id"`
	APIKey     string    `db:"api_key"`
	EnqueuedAt time.Time `db:"enqueued_at"`
	Payload    string    `db:"payload"`
}
