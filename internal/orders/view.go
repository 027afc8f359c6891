package orders

import (
	"encoding/json"
	"log"

	"dineqr/internal/domain"
	"dineqr/internal/socket"
)

// EventSource is the part of the socket client a view needs.
type EventSource interface {
	On(event string, handler socket.Handler) *socket.Subscription
	Join(event string, scope domain.Scope) error
}

// View describes which socket events feed a Board.
type View struct {
	Name string
	// Join is emitted with the scope once handlers are registered.
	Join string
	// Snapshot events replace the whole board.
	Snapshot []string
	// Merge events are merged into the board.
	Merge []string
	// Remove events drop the referenced orders.
	Remove []string
	// Keep, when set, evicts orders that no longer belong to the view after
	// every merge.
	Keep func(domain.Order) bool
}

var PendingView = View{
	Name:     "pending",
	Join:     socket.EventJoinHotelOrders,
	Snapshot: []string{socket.EventInitialOrders},
	Merge:    []string{socket.EventNewOrder},
	Remove:   []string{socket.EventOrderDelivered},
	Keep: func(o domain.Order) bool {
		return !o.OrderAccepted && !o.Terminal()
	},
}

var CookingView = View{
	Name:   "cooking",
	Join:   socket.EventJoinHotelConfirmedOrders,
	Merge:  []string{socket.EventConfirmOrders},
	Remove: []string{socket.EventOrderDelivered},
	Keep: func(o domain.Order) bool {
		return !o.Terminal()
	},
}

func ViewByName(name string) (View, bool) {
	switch name {
	case PendingView.Name:
		return PendingView, true
	case CookingView.Name:
		return CookingView, true
	}
	return View{}, false
}

// Tracking owns the subscriptions of a tracked view.
type Tracking struct {
	subs []*socket.Subscription
}

// Close releases every subscription. The channel join itself lives until the
// transport drops.
func (t *Tracking) Close() {
	if t == nil {
		return
	}
	for _, s := range t.subs {
		s.Close()
	}
	t.subs = nil
}

// Track wires board to src for view and joins the view's channel. onChange,
// when non-nil, runs after every event that was applied.
func Track(src EventSource, view View, scope domain.Scope, board *Board, onChange func()) (*Tracking, error) {
	t := &Tracking{}
	notify := func() {
		if onChange != nil {
			onChange()
		}
	}

	apply := func(reset bool) socket.Handler {
		return func(data json.RawMessage) {
			records, err := ParseRecords(data)
			if err != nil {
				log.Printf("Error decoding %s orders: %v", view.Name, err)
				return
			}
			if reset {
				board.Reset()
			}
			if err := board.Merge(records...); err != nil {
				log.Printf("Error merging %s orders: %v", view.Name, err)
			}
			if view.Keep != nil {
				board.Retain(view.Keep)
			}
			notify()
		}
	}

	for _, event := range view.Snapshot {
		t.subs = append(t.subs, src.On(event, apply(true)))
	}
	for _, event := range view.Merge {
		t.subs = append(t.subs, src.On(event, apply(false)))
	}
	for _, event := range view.Remove {
		t.subs = append(t.subs, src.On(event, func(data json.RawMessage) {
			if board.Remove(IDs(data)...) > 0 {
				notify()
			}
		}))
	}

	if err := src.Join(view.Join, scope); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}
