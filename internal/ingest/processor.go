package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robloxguru/gamebridge/internal/ingest/domain"
)

// process validates and persists one command request
func (i *Ingestor) process(ctx context.Context, req *domain.CommandRequest) error {
	i.logger.Info("Processing command request",
		slog.String("request_id", req.RequestID),
	)

	if req.Payload == "" {
		return domain.ErrEmptyPayload
	}
	if req.APIKey == "" {
		return domain.ErrUnknownAPIKey
	}

	if err := i.storage.EnqueueCommand(ctx, req.APIKey, req.Payload); err != nil {
		if errors.Is(err, domain.ErrUnknownAPIKey) {
			i.logger.Warn("Command request for unknown api key",
				slog.String("request_id", req.RequestID),
			)
			return err
		}
		// store failures are transient from the consumer's point of view
		return domain.NewRetryableError(fmt.Errorf("failed to enqueue command: %w", err))
	}

	return nil
}
