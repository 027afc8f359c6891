package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/socket"
	"dineqr/internal/storage"
)

const DefaultSnapshotTTL = 5 * time.Second

// CachedRepository keeps recent snapshots in a key-value store so a burst
// of joins for one hotel costs a single query.
type CachedRepository struct {
	Repo  SnapshotRepository
	Store storage.Store
	TTL   time.Duration
}

func NewCachedRepository(repo SnapshotRepository, store storage.Store, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &CachedRepository{Repo: repo, Store: store, TTL: ttl}
}

func ordersKey(hotelKey string) string    { return "snapshot:orders:" + hotelKey }
func confirmedKey(hotelKey string) string { return "snapshot:confirmed:" + hotelKey }
func notificationsKey(hotelKey, staffUserID string) string {
	return "snapshot:notifications:" + hotelKey + ":" + staffUserID
}

func (c *CachedRepository) ActiveOrders(hotelKey string) ([]json.RawMessage, error) {
	return c.cached(ordersKey(hotelKey), func() ([]json.RawMessage, error) {
		return c.Repo.ActiveOrders(hotelKey)
	})
}

func (c *CachedRepository) ConfirmedOrders(hotelKey string) ([]json.RawMessage, error) {
	return c.cached(confirmedKey(hotelKey), func() ([]json.RawMessage, error) {
		return c.Repo.ConfirmedOrders(hotelKey)
	})
}

func (c *CachedRepository) Notifications(hotelKey, staffUserID string) ([]json.RawMessage, error) {
	return c.cached(notificationsKey(hotelKey, staffUserID), func() ([]json.RawMessage, error) {
		return c.Repo.Notifications(hotelKey, staffUserID)
	})
}

func (c *CachedRepository) cached(key string, load func() ([]json.RawMessage, error)) ([]json.RawMessage, error) {
	ctx := context.Background()

	raw, err := c.Store.Get(ctx, key)
	if err == nil {
		var docs []json.RawMessage
		if err := json.Unmarshal(raw, &docs); err == nil {
			return docs, nil
		}
		log.Printf("Warning: discarding unreadable snapshot %s", key)
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("Warning: snapshot cache read failed for %s: %v", key, err)
	}

	docs, err := load()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(docs)
	if err == nil {
		err = c.Store.Set(ctx, key, payload, c.TTL)
	}
	if err != nil {
		log.Printf("Warning: failed to cache snapshot %s: %v", key, err)
	}
	return docs, nil
}

// Invalidate drops the snapshots an event makes stale. Notification events
// addressed to a whole hotel are left to expire.
func (c *CachedRepository) Invalidate(ctx context.Context, event domain.PushEvent) {
	var keys []string
	switch event.Event {
	case socket.EventNewOrder, socket.EventConfirmOrders, socket.EventOrderDelivered, socket.EventInitialOrders:
		keys = []string{ordersKey(event.HotelKey), confirmedKey(event.HotelKey)}
	default:
		if event.StaffUserID != "" {
			keys = []string{notificationsKey(event.HotelKey, event.StaffUserID)}
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.Store.Delete(ctx, keys...); err != nil {
		log.Printf("Warning: failed to invalidate snapshots for %s: %v", event.HotelKey, err)
	}
}
