package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"kinerja/internal/platform/config"
)

// KafkaDispatcher publishes notifications to a Kafka topic. Produce is
// asynchronous; errors are logged and dropped, matching the fire-and-forget
// contract.
type KafkaDispatcher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaDispatcher connects to the configured brokers. Returns nil when
// no brokers are configured so callers can fall back to Noop.
func NewKafkaDispatcher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaDispatcher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaDispatcher{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.ErrorContext(ctx, "notification marshal failed", "kind", msg.Kind, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(msg.InstitutionID.String()),
		Value: payload,
	}
	d.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			d.logger.ErrorContext(ctx, "notification produce failed", "kind", msg.Kind, "error", err)
		}
	})
}

// Close flushes pending produces and releases the client.
func (d *KafkaDispatcher) Close() {
	d.client.Close()
}
