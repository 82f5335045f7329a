package dto

import "github.com/robloxguru/gamebridge/internal/bridge/domain"

type ExecuteCommandRequest struct {
	Data string `json:"data" binding:"required"`
}

type SubmitPlayersRequest struct {
	Players domain.PlayerSet `json:"players" binding:"required"`
}

type CommandDTO struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Data      string `json:"data"`
}

type PollCommandsResponse struct {
	JobID    string       `json:"jobId"`
	Commands []CommandDTO `json:"commands"`
}

type PlayersResponse struct {
	JobID   string           `json:"jobId"`
	Players domain.PlayerSet `json:"players"`
}

type SessionKeyResponse struct {
	JobID  string `json:"jobId"`
	APIKey string `json:"apiKey"`
}

type PlayerListResponse struct {
	JobID   string          `json:"jobId"`
	Players []domain.Player `json:"players"`
}
