package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/storage"

	"github.com/jonboulle/clockwork"
)

const TTL = 12 * time.Hour

var ErrNoSession = errors.New("no active session")

type Key string

const (
	KeyAuthStep  Key = "authStep"
	KeyHotelInfo Key = "hotelInfo"
	KeyTables    Key = "tables"
	KeyOTPExpiry Key = "otpExpiry"
)

var allKeys = []Key{KeyAuthStep, KeyHotelInfo, KeyTables, KeyOTPExpiry}

type AuthStep string

const (
	StepEmail    AuthStep = "email"
	StepOTP      AuthStep = "otp"
	StepVerified AuthStep = "verified"
)

type HotelInfo struct {
	HotelKey string `json:"hotelKey"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
}

// Store holds the per-login state of one client. Every value lives under
// session:<role>:<userId>:<name> and disappears on End.
type Store struct {
	mu     sync.RWMutex
	kv     storage.Store
	clock  clockwork.Clock
	ttl    time.Duration
	role   domain.Role
	userID string
}

func New(kv storage.Store, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{kv: kv, clock: clock, ttl: TTL}
}

// Begin starts a session for the user, ending any previous one first.
func (s *Store) Begin(ctx context.Context, role domain.Role, userID string) error {
	if role == "" || userID == "" {
		return fmt.Errorf("begin session: role and user id are required")
	}
	if s.Active() {
		if err := s.End(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.role, s.userID = role, userID
	s.mu.Unlock()
	return nil
}

func (s *Store) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return nil
	}

	keys := make([]string, 0, len(allKeys))
	for _, k := range allKeys {
		keys = append(keys, s.keyLocked(k))
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.role, s.userID = "", ""
	return nil
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

func (s *Store) User() (domain.Role, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role, s.userID
}

func (s *Store) Key(name Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", ErrNoSession
	}
	return s.keyLocked(name), nil
}

func (s *Store) keyLocked(name Key) string {
	return fmt.Sprintf("session:%s:%s:%s", s.role, s.userID, name)
}

func (s *Store) SetAuthStep(ctx context.Context, step AuthStep) error {
	return s.put(ctx, KeyAuthStep, step)
}

// AuthStep returns StepEmail when no step has been recorded yet.
func (s *Store) AuthStep(ctx context.Context) (AuthStep, error) {
	step := StepEmail
	err := s.get(ctx, KeyAuthStep, &step)
	if errors.Is(err, storage.ErrNotFound) {
		return StepEmail, nil
	}
	return step, err
}

func (s *Store) SetHotelInfo(ctx context.Context, info HotelInfo) error {
	return s.put(ctx, KeyHotelInfo, info)
}

func (s *Store) HotelInfo(ctx context.Context) (HotelInfo, error) {
	var info HotelInfo
	err := s.get(ctx, KeyHotelInfo, &info)
	return info, err
}

func (s *Store) SetTables(ctx context.Context, tables []domain.Table) error {
	return s.put(ctx, KeyTables, tables)
}

func (s *Store) Tables(ctx context.Context) ([]domain.Table, error) {
	var tables []domain.Table
	err := s.get(ctx, KeyTables, &tables)
	return tables, err
}

// StartOTPTimer records when the OTP resend window closes.
func (s *Store) StartOTPTimer(ctx context.Context, window time.Duration) error {
	return s.put(ctx, KeyOTPExpiry, s.clock.Now().Add(window).UnixMilli())
}

// OTPRemaining is the time left on the resend window, zero once it elapsed
// or when no timer was started.
func (s *Store) OTPRemaining(ctx context.Context) (time.Duration, error) {
	var expiry int64
	err := s.get(ctx, KeyOTPExpiry, &expiry)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	left := time.UnixMilli(expiry).Sub(s.clock.Now())
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (s *Store) put(ctx context.Context, name Key, value any) error {
	key, err := s.Key(name)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, payload, s.ttl)
}

func (s *Store) get(ctx context.Context, name Key, out any) error {
	key, err := s.Key(name)
	if err != nil {
		return err
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode session %s: %w", name, err)
	}
	return nil
}
