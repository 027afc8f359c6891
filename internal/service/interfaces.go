package service

import (
	"context"
	"encoding/json"

	"dineqr/internal/domain"
	"dineqr/internal/socket"
	"dineqr/internal/storage"

	"github.com/segmentio/kafka-go"
)

type SnapshotRepository interface {
	ActiveOrders(hotelKey string) ([]json.RawMessage, error)
	ConfirmedOrders(hotelKey string) ([]json.RawMessage, error)
	Notifications(hotelKey, staffUserID string) ([]json.RawMessage, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.PushEvent) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Broadcaster interface {
	Broadcast(event domain.PushEvent) int
}

type Invalidator interface {
	Invalidate(ctx context.Context, event domain.PushEvent)
}

// Peer is one connected client, whatever transport it came in on.
type Peer interface {
	ID() string
	Transport() string
	Send(env socket.Envelope) error
	Close() error
}

type HubInterface interface {
	Broadcaster
	Join(peer Peer, event string, scope domain.Scope) error
	Leave(peer Peer)
	Drop(peer Peer)
}

type QRGenerator interface {
	Generate(hotelKey, tableNumber string) ([]byte, error)
}

var (
	_ SnapshotRepository = (*storage.PostgresRepository)(nil)
	_ SnapshotRepository = (*CachedRepository)(nil)
	_ Invalidator        = (*CachedRepository)(nil)
	_ EventPublisher     = (*storage.KafkaPublisher)(nil)
	_ MessageReader      = (*kafka.Reader)(nil)
	_ HubInterface       = (*Hub)(nil)
	_ QRGenerator        = DefaultQRGenerator{}
)
