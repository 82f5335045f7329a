package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robloxguru/gamebridge/internal/ingest/domain"
)

// spawnPool spawns worker goroutines processing command requests
func (i *Ingestor) spawnPool(ctx context.Context) {
	i.logger.Info("Spawning ingest pool",
		slog.Int("concurrency", i.concurrency),
	)

	for n := 0; n < i.concurrency; n++ {
		i.wg.Add(1)
		go i.workerLoop(ctx, n)
	}
}

// workerLoop is the processing loop of one pool worker
func (i *Ingestor) workerLoop(ctx context.Context, workerNum int) {
	defer i.wg.Done()

	workerName := fmt.Sprintf("%s-%d", i.consumerID, workerNum)

	for {
		select {
		case <-i.stopChan:
			return

		case <-ctx.Done():
			return

		case req, ok := <-i.requests:
			if !ok {
				return
			}

			err := i.process(ctx, req)

			channel := i.rabbitClient.GetChannel()
			if channel == nil {
				i.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("request_id", req.RequestID),
				)
				continue
			}

			if err != nil {
				i.logger.Error("Command request failed",
					slog.String("worker_name", workerName),
					slog.String("request_id", req.RequestID),
					slog.String("error", err.Error()),
				)

				requeue := shouldRequeue(err)
				if nackErr := channel.Nack(req.DeliveryTag, false, requeue); nackErr != nil {
					i.logger.Error("Failed to NACK message",
						slog.String("request_id", req.RequestID),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(req.DeliveryTag, false); ackErr != nil {
				i.logger.Error("Failed to ACK message",
					slog.String("request_id", req.RequestID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeue decides the NACK requeue flag from the error class. Invalid
// requests mirror the HTTP path's 4xx responses and are never requeued;
// transient store failures are.
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrUnknownAPIKey) {
		return false
	}

	if errors.Is(err, domain.ErrEmptyPayload) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
