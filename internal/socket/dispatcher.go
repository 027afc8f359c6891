package socket

import (
	"encoding/json"
	"sync"
)

type Handler func(data json.RawMessage)

type entry struct {
	id      uint64
	handler Handler
}

// Dispatcher routes envelopes to the handlers registered for their event,
// in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string][]entry
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]entry)}
}

// On registers handler for event. The returned Subscription must be closed
// when the caller stops caring about the event.
func (d *Dispatcher) On(event string, handler Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.handlers[event] = append(d.handlers[event], entry{id: d.next, handler: handler})
	return &Subscription{dispatcher: d, event: event, id: d.next}
}

// Dispatch calls every handler registered for env.Event and returns how many
// ran.
func (d *Dispatcher) Dispatch(env Envelope) int {
	d.mu.RLock()
	registered := d.handlers[env.Event]
	handlers := make([]Handler, 0, len(registered))
	for _, e := range registered {
		handlers = append(handlers, e.handler)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(env.Data)
	}
	return len(handlers)
}

// Handlers reports how many handlers are registered for event.
func (d *Dispatcher) Handlers(event string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[event])
}

func (d *Dispatcher) off(event string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	registered := d.handlers[event]
	for i, e := range registered {
		if e.id == id {
			d.handlers[event] = append(registered[:i:i], registered[i+1:]...)
			break
		}
	}
	if len(d.handlers[event]) == 0 {
		delete(d.handlers, event)
	}
}

type Subscription struct {
	dispatcher *Dispatcher
	event      string
	id         uint64
	once       sync.Once
}

func (s *Subscription) Event() string { return s.event }

// Close unregisters the handler. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.dispatcher == nil {
		return
	}
	s.once.Do(func() { s.dispatcher.off(s.event, s.id) })
}
