package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Player is one connected entity reported by a game server. JSON field names
// match what the game servers submit.
type Player struct {
	UserID      int64  `json:"UserId"`
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	JobID       string `json:"jobId"`
	Verified    bool   `json:"Verified"`
}

// PlayerSet is a snapshot payload, keyed by the player's user id.
type PlayerSet map[string]Player

// Validate rejects structurally broken snapshot payloads at the boundary.
func (ps PlayerSet) Validate() error {
	for key, p := range ps {
		if key == "" {
			return fmt.Errorf("player entry with empty key")
		}
		if p.Name == "" {
			return fmt.Errorf("player %q has no name", key)
		}
	}
	return nil
}

// PlayerSnapshot is the last-known state of a worker's connected players.
type PlayerSnapshot struct {
	JobID       string    `db:"job_id"`
	Data        []byte    `db:"data"`
	LastUpdated time.Time `db:"last_updated"`
}

// Players decodes the snapshot payload.
func (s *PlayerSnapshot) Players() (PlayerSet, error) {
	if len(s.Data) == 0 {
		return PlayerSet{}, nil
	}
	var ps PlayerSet
	if err := json.Unmarshal(s.Data, &ps); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot data: %w", err)
	}
	return ps, nil
}
