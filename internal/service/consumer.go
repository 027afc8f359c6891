package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"dineqr/internal/domain"
	"dineqr/internal/metrics"

	"github.com/segmentio/kafka-go"
)

var ErrInvalidEvent = errors.New("push event needs an event name and a hotel key")

// Consumer reads push events from the event topic and fans them out to the
// peers connected to this relay instance.
type Consumer struct {
	Reader MessageReader
	Hub    Broadcaster
	Cache  Invalidator
}

func NewConsumer(reader MessageReader, hub Broadcaster, cache Invalidator) *Consumer {
	return &Consumer{
		Reader: reader,
		Hub:    hub,
		Cache:  cache,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Println("Starting relay event consumer...")
	for {
		message, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Println("Relay event consumer stopped")
				return
			}
			log.Printf("Error reading message: %v", err)
			continue
		}

		if err := c.ProcessMessage(ctx, message); err != nil {
			log.Printf("Error processing message at offset %d: %v", message.Offset, err)
		}
	}
}

func (c *Consumer) ProcessMessage(ctx context.Context, message kafka.Message) error {
	var event domain.PushEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		metrics.RecordConsumed(false)
		return err
	}
	return c.ProcessEvent(ctx, event)
}

// ProcessEvent drops stale snapshots for the event, then broadcasts it.
func (c *Consumer) ProcessEvent(ctx context.Context, event domain.PushEvent) error {
	if event.Event == "" || event.HotelKey == "" {
		metrics.RecordConsumed(false)
		return ErrInvalidEvent
	}
	metrics.RecordConsumed(true)

	if c.Cache != nil {
		c.Cache.Invalidate(ctx, event)
	}
	delivered := c.Hub.Broadcast(event)
	log.Printf("Delivered %s for hotel %s to %d peers", event.Event, event.HotelKey, delivered)
	return nil
}
