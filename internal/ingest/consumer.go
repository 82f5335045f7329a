package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robloxguru/gamebridge/internal/ingest/domain"
)

// setupConsumer configures QoS and starts consuming from the command queue
func (i *Ingestor) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := i.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// prefetch bounds the number of unacknowledged messages per consumer
	if err := channel.Qos(i.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	i.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", i.prefetchCount),
	)

	deliveries, err := i.rabbitClient.Consume(i.consumerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return deliveries, nil
}

// dispatch reads deliveries and hands parsed requests to the worker pool.
// Malformed messages are nacked without requeue.
func (i *Ingestor) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	i.logger.Info("Command dispatcher started",
		slog.String("consumer_id", i.consumerID),
	)

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("Command dispatcher stopped - context canceled")
			return

		case <-i.stopChan:
			i.logger.Info("Command dispatcher stopped")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				i.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var req domain.CommandRequest
			if err := json.Unmarshal(delivery.Body, &req); err != nil {
				i.logger.Error("Failed to parse command request JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					i.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			req.DeliveryTag = delivery.DeliveryTag

			select {
			case i.requests <- &req:
				i.logger.Debug("Command request dispatched",
					slog.String("request_id", req.RequestID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				// requeue so another consumer picks it up
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					i.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
