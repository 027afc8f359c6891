package storage

import (
	"context"
	"encoding/json"
	"time"

	"dineqr/internal/domain"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: writer}
}

// Publish writes the event keyed by hotel so every event of one hotel lands
// on the same partition and keeps its order.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.PushEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.HotelKey),
		Value: payload,
	})
}
