package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robloxguru/gamebridge/internal/bridge/auth"
	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/internal/bridge/ratelimit"
)

// Store is the persistence surface the handlers need.
type Store interface {
	SessionByAPIKey(ctx context.Context, apiKey string) (*domain.Session, error)
	SessionByJobID(ctx context.Context, jobID string) (*domain.Session, error)
	Heartbeat(ctx context.Context, jobID, apiKey string) error
	EnqueueCommand(ctx context.Context, apiKey, payload string) (string, error)
	DrainCommands(ctx context.Context, apiKey string) ([]domain.QueuedCommand, error)
	Snapshot(ctx context.Context, jobID string) (*domain.PlayerSnapshot, error)
	UpsertSnapshot(ctx context.Context, jobID string, data []byte) error
	AllSnapshots(ctx context.Context) ([]domain.PlayerSnapshot, error)
}

// Events receives lifecycle notifications. Publishing is advisory: handlers
// never fail a request over it.
type Events interface {
	CommandEnqueued(ctx context.Context, jobID, apiKey string)
}

// Dependencies holds all dependencies needed by handlers and the router
type Dependencies struct {
	Logger  *slog.Logger
	Store   Store
	Gate    *auth.Gate
	Events  Events
	Limiter *ratelimit.Limiter
}

// BridgeHandler handles the session/queue/snapshot HTTP surface
type BridgeHandler struct {
	logger *slog.Logger
	store  Store
	gate   *auth.Gate
	events Events
}

// NewBridgeHandler creates a new BridgeHandler instance
func NewBridgeHandler(deps *Dependencies) *BridgeHandler {
	return &BridgeHandler{
		logger: deps.Logger,
		store:  deps.Store,
		gate:   deps.Gate,
		events: deps.Events,
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
