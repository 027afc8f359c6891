package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"dineqr/internal/domain"
	"dineqr/internal/metrics"
	"dineqr/internal/socket"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMissingHotel   = errors.New("hotel key is required")
	ErrMissingStaff   = errors.New("staff user id is required")
)

func OrdersRoom(hotelKey string) string {
	return "orders:" + hotelKey
}

func ConfirmedRoom(hotelKey string) string {
	return "confirmed:" + hotelKey
}

func NotificationsRoom(hotelKey, staffUserID string) string {
	return "notifications:" + hotelKey + ":" + staffUserID
}

// Hub keeps hotel-scoped rooms of peers and fans push events out to them.
type Hub struct {
	Repo SnapshotRepository

	mu    sync.RWMutex
	rooms map[string]map[string]Peer
	peers map[string]map[string]struct{}
	// gates serialize a room's joins with deliveries to that room, so a
	// joining peer never sees an event before its snapshot.
	gates map[string]*sync.Mutex
}

func NewHub(repo SnapshotRepository) *Hub {
	return &Hub{
		Repo:  repo,
		rooms: make(map[string]map[string]Peer),
		peers: make(map[string]map[string]struct{}),
		gates: make(map[string]*sync.Mutex),
	}
}

func (h *Hub) gate(room string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.gates[room]
	if !ok {
		g = &sync.Mutex{}
		h.gates[room] = g
	}
	return g
}

func roomFor(event string, scope domain.Scope) (string, error) {
	if scope.HotelKey == "" {
		return "", ErrMissingHotel
	}
	switch event {
	case socket.EventJoinHotelOrders:
		return OrdersRoom(scope.HotelKey), nil
	case socket.EventJoinHotelConfirmedOrders:
		return ConfirmedRoom(scope.HotelKey), nil
	case socket.EventJoinHotelNotifications:
		if scope.StaffUserID == "" {
			return "", ErrMissingStaff
		}
		return NotificationsRoom(scope.HotelKey, scope.StaffUserID), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, event)
	}
}

// Join sends the peer the channel's current state and then adds it to the
// channel's room. The peer is still joined when the snapshot cannot be loaded.
func (h *Hub) Join(peer Peer, event string, scope domain.Scope) error {
	room, err := roomFor(event, scope)
	if err != nil {
		return err
	}

	gate := h.gate(room)
	gate.Lock()
	defer gate.Unlock()

	env, ok, err := h.snapshot(event, scope)
	if err != nil {
		log.Printf("Error loading snapshot for %s: %v", room, err)
		h.add(peer, room)
		return err
	}
	if ok {
		if err := peer.Send(env); err != nil {
			h.Drop(peer)
			return err
		}
	}
	h.add(peer, room)
	return nil
}

func (h *Hub) add(peer Peer, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]Peer)
	}
	h.rooms[room][peer.ID()] = peer
	if h.peers[peer.ID()] == nil {
		h.peers[peer.ID()] = make(map[string]struct{})
	}
	h.peers[peer.ID()][room] = struct{}{}
}

func (h *Hub) snapshot(event string, scope domain.Scope) (socket.Envelope, bool, error) {
	if h.Repo == nil {
		return socket.Envelope{}, false, nil
	}

	var (
		docs []json.RawMessage
		err  error
		name string
	)
	switch event {
	case socket.EventJoinHotelOrders:
		name = socket.EventInitialOrders
		docs, err = h.Repo.ActiveOrders(scope.HotelKey)
	case socket.EventJoinHotelConfirmedOrders:
		name = socket.EventConfirmOrders
		docs, err = h.Repo.ConfirmedOrders(scope.HotelKey)
	case socket.EventJoinHotelNotifications:
		name = socket.EventInitialNotifications
		docs, err = h.Repo.Notifications(scope.HotelKey, scope.StaffUserID)
	}
	if err != nil {
		return socket.Envelope{}, false, err
	}
	// The cooking view has no snapshot event of its own, so an empty
	// confirmed batch is not worth sending.
	if name == socket.EventConfirmOrders && len(docs) == 0 {
		return socket.Envelope{}, false, nil
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}

	env, err := socket.NewEnvelope(name, docs)
	if err != nil {
		return socket.Envelope{}, false, err
	}
	return env, true, nil
}

// Leave removes the peer from every room it joined.
func (h *Hub) Leave(peer Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.peers[peer.ID()] {
		delete(h.rooms[room], peer.ID())
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.peers, peer.ID())
}

// Drop removes the peer and closes its transport.
func (h *Hub) Drop(peer Peer) {
	h.Leave(peer)
	if err := peer.Close(); err != nil {
		log.Printf("Warning: closing peer %s: %v", peer.ID(), err)
	}
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers the event to every peer in the rooms it targets and
// returns how many peers received it. Peers whose send fails are dropped.
func (h *Hub) Broadcast(event domain.PushEvent) int {
	if event.HotelKey == "" {
		log.Printf("Warning: dropping %s event without hotel key", event.Event)
		return 0
	}

	env := socket.Envelope{Event: event.Event, Data: event.Data}
	rooms := h.targetRooms(event)
	if len(rooms) == 0 {
		return 0
	}

	delivered := 0
	seen := make(map[string]struct{})
	for _, room := range rooms {
		gate := h.gate(room)
		gate.Lock()
		for _, peer := range h.members(room) {
			if _, dup := seen[peer.ID()]; dup {
				continue
			}
			seen[peer.ID()] = struct{}{}
			if err := peer.Send(env); err != nil {
				log.Printf("Warning: dropping peer %s after failed send: %v", peer.ID(), err)
				h.Drop(peer)
				continue
			}
			delivered++
		}
		gate.Unlock()
	}
	metrics.RecordDelivery(event.Event, delivered)
	return delivered
}

func (h *Hub) members(room string) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := make([]Peer, 0, len(h.rooms[room]))
	for _, peer := range h.rooms[room] {
		peers = append(peers, peer)
	}
	return peers
}

func (h *Hub) targetRooms(event domain.PushEvent) []string {
	switch event.Event {
	case socket.EventInitialOrders, socket.EventNewOrder:
		return []string{OrdersRoom(event.HotelKey)}
	case socket.EventConfirmOrders:
		return []string{ConfirmedRoom(event.HotelKey)}
	case socket.EventOrderDelivered:
		return []string{OrdersRoom(event.HotelKey), ConfirmedRoom(event.HotelKey)}
	case socket.EventInitialNotifications, socket.EventNewNotification,
		socket.EventMarkReadNotifications, socket.EventMarkReadNewNotification:
		if event.StaffUserID != "" {
			return []string{NotificationsRoom(event.HotelKey, event.StaffUserID)}
		}
		h.mu.RLock()
		defer h.mu.RUnlock()
		prefix := NotificationsRoom(event.HotelKey, "")
		var rooms []string
		for room := range h.rooms {
			if strings.HasPrefix(room, prefix) {
				rooms = append(rooms, room)
			}
		}
		return rooms
	default:
		log.Printf("Warning: no room for event %q", event.Event)
		return nil
	}
}
