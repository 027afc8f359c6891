package orders

import (
	"errors"
	"log"
	"sync"

	"dineqr/internal/domain"
)

// Board is the client-side list of orders for one view. Entries keep their
// arrival order and there is at most one entry per order id.
type Board struct {
	mu     sync.RWMutex
	ids    []string
	raw    map[string]Record
	orders map[string]domain.Order
}

func NewBoard() *Board {
	return &Board{
		raw:    make(map[string]Record),
		orders: make(map[string]domain.Order),
	}
}

// Apply parses a pushed payload (one order or a batch) and merges it.
func (b *Board) Apply(data []byte) error {
	records, err := ParseRecords(data)
	if err != nil {
		return err
	}
	return b.Merge(records...)
}

// Merge shallow-merges each record over the entry with the same id, or
// appends it when the id is new. Records are expected to be normalized.
// A record that cannot be decoded is skipped and reported in the returned
// error; the rest are still applied.
func (b *Board) Merge(records ...Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, rec := range records {
		id := rec.ID()
		if id == domain.UnknownID {
			log.Printf("Warning: order record without identifier merged as %q", domain.UnknownID)
		}

		merged := rec
		existing, known := b.raw[id]
		if known {
			merged = overlay(existing, rec)
		}

		order, err := merged.Order()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		b.raw[id] = merged
		b.orders[id] = order
		if !known {
			b.ids = append(b.ids, id)
		}
	}
	return errors.Join(errs...)
}

// Remove drops the given ids and reports how many entries were removed.
func (b *Board) Remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter(func(id string, _ domain.Order) bool {
		_, gone := drop[id]
		return !gone
	})
}

// Retain keeps only the orders for which keep returns true.
func (b *Board) Retain(keep func(domain.Order) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter(func(_ string, o domain.Order) bool { return keep(o) })
}

func (b *Board) filter(keep func(string, domain.Order) bool) int {
	kept := b.ids[:0]
	removed := 0
	for _, id := range b.ids {
		if keep(id, b.orders[id]) {
			kept = append(kept, id)
			continue
		}
		delete(b.raw, id)
		delete(b.orders, id)
		removed++
	}
	b.ids = kept
	return removed
}

func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = nil
	b.raw = make(map[string]Record)
	b.orders = make(map[string]domain.Order)
}

// Orders returns a snapshot in arrival order.
func (b *Board) Orders() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Order, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.orders[id])
	}
	return out
}

func (b *Board) Get(id string) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}
