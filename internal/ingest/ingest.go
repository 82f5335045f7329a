// Package ingest consumes command-enqueue requests published by the external
// admin surface and appends them to the command queue after API-key
// validation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/robloxguru/gamebridge/internal/ingest/domain"
	"github.com/robloxguru/gamebridge/internal/ingest/storage"
	"github.com/robloxguru/gamebridge/shared/postgresql"
	"github.com/robloxguru/gamebridge/shared/rabbitmq"
)

// Config holds ingestor configuration
type Config struct {
	Logger        *slog.Logger
	DBClient      *postgresql.Client
	RabbitClient  *rabbitmq.Client
	Concurrency   int
	PrefetchCount int
}

// Ingestor is the command ingest consumer
type Ingestor struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	storage       enqueuer
	concurrency   int
	prefetchCount int
	consumerID    string

	requests chan *domain.CommandRequest
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// enqueuer is the storage surface the pool needs; narrowed for tests
type enqueuer interface {
	EnqueueCommand(ctx context.Context, apiKey, payload string) error
}

// NewIngestor creates a new ingestor instance
func NewIngestor(cfg *Config) *Ingestor {
	consumerID := fmt.Sprintf("ingest-%s", strings.Split(uuid.NewString(), "-")[0])

	return &Ingestor{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		storage:       storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		consumerID:    consumerID,
		requests:      make(chan *domain.CommandRequest),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming command requests. It blocks until the context is
// canceled or the delivery channel closes.
func (i *Ingestor) Start(ctx context.Context) error {
	i.logger.Info("Starting command ingestor",
		slog.String("consumer_id", i.consumerID),
		slog.Int("concurrency", i.concurrency),
	)

	deliveries, err := i.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	i.spawnPool(ctx)
	i.dispatch(ctx, deliveries)

	return nil
}

// Stop gracefully stops the ingestor
func (i *Ingestor) Stop() {
	i.logger.Info("Stopping command ingestor...")
	close(i.stopChan)
	i.wg.Wait()
	i.logger.Info("Command ingestor stopped")
}
