package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/storage"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const (
	KeyPrefix    = "Add-to-cart_food_list"
	TTL          = 8 * time.Hour
	ConfirmDelay = 2 * time.Second

	// Stored entries outlive their logical expiry by this much so that
	// abandoned carts are eventually reclaimed by the store itself.
	storageGrace = 24 * time.Hour
)

var (
	ErrMissingUser  = errors.New("cart user id is required")
	ErrInvalidItems = errors.New("invalid cart items")
)

// Entry is the stored value: the items plus an absolute expiry in epoch
// milliseconds.
type Entry struct {
	Items  []domain.CartLineItem `json:"items"`
	Expiry int64                 `json:"expiry"`
}

func (e Entry) Expired(now time.Time) bool {
	return now.UnixMilli() > e.Expiry
}

type Option func(*Cache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithConfirmDelay(delay time.Duration) Option {
	return func(c *Cache) { c.confirmDelay = delay }
}

// WithScheduler runs delayed clears on s instead of a scheduler owned by the
// cache. The caller is responsible for s's clock.
func WithScheduler(s gocron.Scheduler) Option {
	return func(c *Cache) { c.scheduler = s }
}

// Cache is the per-user cart. There is at most one entry per user and the
// last write wins.
type Cache struct {
	store        storage.Store
	clock        clockwork.Clock
	ttl          time.Duration
	confirmDelay time.Duration
	validate     *validator.Validate
	scheduler    gocron.Scheduler
	ownScheduler bool
}

func New(store storage.Store, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:        store,
		clock:        clockwork.NewRealClock(),
		ttl:          TTL,
		confirmDelay: ConfirmDelay,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.scheduler == nil {
		s, err := gocron.NewScheduler(gocron.WithClock(c.clock))
		if err != nil {
			return nil, fmt.Errorf("create cart scheduler: %w", err)
		}
		c.scheduler = s
		c.ownScheduler = true
	}
	c.scheduler.Start()
	return c, nil
}

func Key(userID string) string {
	return KeyPrefix + userID
}

// Add replaces any stored items sharing an id with the new selection, appends
// the selection, and restarts the expiry window.
func (c *Cache) Add(ctx context.Context, userID string, items []domain.CartLineItem) ([]domain.CartLineItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", ErrInvalidItems)
	}
	for i := range items {
		if err := c.validate.Struct(items[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidItems, err)
		}
	}

	now := c.clock.Now()
	existing, err := c.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Expired(now) {
		existing = &Entry{}
	}

	replaced := make(map[string]struct{}, len(items))
	for _, item := range items {
		replaced[item.ID] = struct{}{}
	}

	merged := make([]domain.CartLineItem, 0, len(existing.Items)+len(items))
	for _, item := range existing.Items {
		if _, ok := replaced[item.ID]; !ok {
			merged = append(merged, item)
		}
	}
	for _, item := range items {
		merged = append(merged, withSubtotals(item))
	}

	entry := Entry{Items: merged, Expiry: now.Add(c.ttl).UnixMilli()}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, Key(userID), payload, c.ttl+storageGrace); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return merged, nil
}

// Load returns the cart, or an empty cart when the entry is missing or
// expired. A stale entry is left in place for the next write to replace.
func (c *Cache) Load(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	entry, err := c.live(ctx, userID)
	if err != nil || entry == nil {
		return []domain.CartLineItem{}, err
	}
	return entry.Items, nil
}

// LoadForCheckout behaves like Load but deletes an expired entry.
func (c *Cache) LoadForCheckout(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	entry, err := c.read(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return []domain.CartLineItem{}, nil
	}
	if entry.Expired(c.clock.Now()) {
		if err := c.store.Delete(ctx, Key(userID)); err != nil {
			return nil, fmt.Errorf("failed to drop expired cart: %w", err)
		}
		return []domain.CartLineItem{}, nil
	}
	return entry.Items, nil
}

func (c *Cache) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	return c.store.Delete(ctx, Key(userID))
}

// ClearAfterConfirm drops the cart once the confirmation delay has passed,
// leaving time for the order-placed message to show.
func (c *Cache) ClearAfterConfirm(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}

	start := gocron.OneTimeJobStartImmediately()
	if c.confirmDelay > 0 {
		start = gocron.OneTimeJobStartDateTime(c.clock.Now().Add(c.confirmDelay))
	}

	_, err := c.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(func() {
			if err := c.Clear(context.Background(), userID); err != nil {
				log.Printf("Warning: failed to clear cart for user %s: %v", userID, err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cart clear: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	if !c.ownScheduler {
		return nil
	}
	return c.scheduler.Shutdown()
}

func (c *Cache) live(ctx context.Context, userID string) (*Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	entry, err := c.read(ctx, userID)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.Expired(c.clock.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (c *Cache) read(ctx context.Context, userID string) (*Entry, error) {
	raw, err := c.store.Get(ctx, Key(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Printf("Warning: ignoring unreadable cart for user %s: %v", userID, err)
		return nil, nil
	}
	return &entry, nil
}

func withSubtotals(item domain.CartLineItem) domain.CartLineItem {
	portions := make([]domain.PortionSelection, len(item.Portions))
	for i, p := range item.Portions {
		p.Subtotal = decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity))).InexactFloat64()
		portions[i] = p
	}
	item.Portions = portions
	return item
}

// Total sums the subtotals of every selected portion.
func Total(items []domain.CartLineItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		for _, p := range item.Portions {
			sum = sum.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity))))
		}
	}
	return sum.InexactFloat64()
}
