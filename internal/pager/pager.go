package pager

import (
	"context"
	"sync"
)

// Page is one server response of a page-based list endpoint.
type Page[T any] struct {
	Items []T
	Total int
}

type FetchFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// Pager accumulates a page-based list. Items already held are not appended
// again when an overlapping page repeats them.
type Pager[T any] struct {
	mu      sync.Mutex
	fetch   FetchFunc[T]
	key     func(T) string
	items   []T
	seen    map[string]struct{}
	page    int
	total   int
	hasMore bool
}

func New[T any](fetch FetchFunc[T], key func(T) string) *Pager[T] {
	p := &Pager[T]{fetch: fetch, key: key}
	p.reset()
	return p
}

// Next requests the following page. It returns the number of newly added
// items and does nothing once the list is exhausted.
func (p *Pager[T]) Next(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasMore {
		return 0, nil
	}

	res, err := p.fetch(ctx, p.page+1)
	if err != nil {
		return 0, err
	}
	p.page++
	p.total = res.Total

	added := 0
	for _, item := range res.Items {
		k := p.key(item)
		if _, dup := p.seen[k]; dup {
			continue
		}
		p.seen[k] = struct{}{}
		p.items = append(p.items, item)
		added++
	}

	// A zero total means the server did not report one.
	if len(res.Items) == 0 || (res.Total > 0 && len(p.items) >= res.Total) {
		p.hasMore = false
	}
	return added, nil
}

func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...)
}

func (p *Pager[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Page is the last successfully fetched page number, 0 before the first.
func (p *Pager[T]) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Pager[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Reset drops everything held so the next call starts again at page 1.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *Pager[T]) reset() {
	p.items = nil
	p.seen = make(map[string]struct{})
	p.page = 0
	p.total = 0
	p.hasMore = true
}
