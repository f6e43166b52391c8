package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/widodu77/knowledge-graph/src/domain"
	"github.com/widodu77/knowledge-graph/src/infra/kafka"
	syncservice "github.com/widodu77/knowledge-graph/src/services/sync"
)

// KafkaEventMessage representa o schema da mensagem de evento comportamental
type KafkaEventMessage struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	ProductID  int64     `json:"product_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"ts"`
}

// BehavioralEventsConsumer aplica eventos comportamentais no grafo conforme
// chegam, entre runs completos. O mesmo mapper e writer do run garantem que
// o caminho de stream e o de batch convergem para as mesmas arestas.
type BehavioralEventsConsumer struct {
	logger *slog.Logger
	writer syncservice.GraphWriter
}

func NewBehavioralEventsConsumer(
	logger *slog.Logger,
	writer syncservice.GraphWriter,
) *BehavioralEventsConsumer {
	return &BehavioralEventsConsumer{
		logger: logger,
		writer: writer,
	}
}

func (c *BehavioralEventsConsumer) Start(ctx context.Context, kafkaClient *kafka.KafkaClient, topic string) error {
	c.logger.Info("Starting behavioral events consumer", "topic", topic)

	handler := func(messages []kafka.Message) error {
		return c.handleMessages(ctx, messages)
	}

	return kafkaClient.Consumer(ctx, handler, topic)
}

func (c *BehavioralEventsConsumer) handleMessages(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]domain.SourceRow, 0, len(messages))
	for _, msg := range messages {
		var event KafkaEventMessage
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("Failed to unmarshal event message",
				"error", err,
				"key", msg.Key,
				"value", string(msg.Value))
			return fmt.Errorf("failed to unmarshal message with key %s: %w", msg.Key, err)
		}

		rows = append(rows, domain.SourceRow{
			"id":          event.ID,
			"customer_id": event.CustomerID,
			"product_id":  event.ProductID,
			"event_type":  event.EventType,
			"ts":          event.Timestamp,
		})
	}

	descriptors, mapFailures := syncservice.MapBatch(domain.EntityTypeEvent, rows)
	for _, failure := range mapFailures {
		c.logger.Warn("Skipping unmappable event", "key", failure.Key, "reason", failure.Reason)
	}

	applied, writeFailures, err := c.writer.ApplyBatch(ctx, descriptors)
	if err != nil {
		// Lote inteiro revertido; offsets não marcados, reentrega depois.
		return fmt.Errorf("failed to apply event batch: %w", err)
	}

	for _, failure := range writeFailures {
		// Gap referencial: o Customer/Product ainda não chegou pelo run
		// completo. O evento será recuperado no próximo RunSync.
		c.logger.Warn("Event edge deferred", "key", failure.Key, "reason", failure.Reason)
	}

	c.logger.Info("Processed event batch", "count", len(messages), "applied", applied)
	return nil
}
