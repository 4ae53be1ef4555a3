package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaPublisher produces booking events keyed by show id, so events of one
// show stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	log    *zap.Logger
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	// DeliveryTimeout fails a record that could not be delivered in time
	DeliveryTimeout time.Duration
}

const defaultDeliveryTimeout = 10 * time.Second

func NewKafkaPublisher(cfg KafkaConfig, log *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout),
		kgo.ProduceRequestTimeout(5 * time.Second),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		log:    log.With(zap.String("publisher", "kafka"), zap.String("topic", cfg.Topic)),
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode booking event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.ShowID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.log.Error("Failed to publish booking event",
			zap.Error(err),
			zap.String("type", string(event.Type)),
			zap.String("booking_id", event.BookingID),
		)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
