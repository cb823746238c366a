package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hrrr-inventory/internal/config"
	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes inventory-written notifications to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured notification topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Notify publishes one notification keyed by the inventory file name, so all
// notifications for the same inventory land on one partition.
func (w *Writer) Notify(ctx context.Context, evt domain.InventoryWritten) error {
	msg, err := serializeToMessage(evt)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Key, err)
	}
	w.logger.Debug("inventory notification published", "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an InventoryWritten into a Kafka message.
func serializeToMessage(evt domain.InventoryWritten) (kafkago.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize inventory notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(filepath.Base(evt.Path)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(evt.Region)},
			{Key: "product", Value: []byte(evt.Product)},
			{Key: "cycle_type", Value: []byte(evt.CycleType)},
			{Key: "written_at", Value: []byte(evt.WrittenAt.Format(time.RFC3339))},
		},
	}, nil
}
