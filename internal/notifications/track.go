package notifications

import (
	"encoding/json"
	"log"

	"dineqr/internal/domain"
	"dineqr/internal/socket"
)

type EventSource interface {
	On(event string, handler socket.Handler) *socket.Subscription
	Join(event string, scope domain.Scope) error
}

type Tracking struct {
	subs []*socket.Subscription
}

func (t *Tracking) Close() {
	if t == nil {
		return
	}
	for _, s := range t.subs {
		s.Close()
	}
	t.subs = nil
}

// Track feeds feed from the hotel notification channel of scope.
func Track(src EventSource, scope domain.Scope, feed *Feed, onChange func()) (*Tracking, error) {
	t := &Tracking{}
	notify := func() {
		if onChange != nil {
			onChange()
		}
	}

	t.subs = append(t.subs,
		src.On(socket.EventInitialNotifications, func(data json.RawMessage) {
			list, err := Parse(data)
			if err != nil {
				log.Printf("Error decoding initial notifications: %v", err)
				return
			}
			feed.Replace(list)
			notify()
		}),
		src.On(socket.EventNewNotification, func(data json.RawMessage) {
			list, err := Parse(data)
			if err != nil {
				log.Printf("Error decoding notification: %v", err)
				return
			}
			for _, n := range list {
				feed.Add(n)
			}
			notify()
		}),
		src.On(socket.EventMarkReadNotifications, func(data json.RawMessage) {
			ids, all := ReadIDs(data)
			if !all && len(ids) == 0 {
				return
			}
			if feed.MarkRead(ids...) > 0 {
				notify()
			}
		}),
		src.On(socket.EventMarkReadNewNotification, func(data json.RawMessage) {
			ids, _ := ReadIDs(data)
			if len(ids) == 0 {
				return
			}
			if feed.MarkRead(ids...) > 0 {
				notify()
			}
		}),
	)

	if err := src.Join(socket.EventJoinHotelNotifications, scope); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}
