package session

import (
	"context"
	"testing"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RequiresSession(t *testing.T) {
	s := New(storage.NewMemoryStore(nil), nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.SetAuthStep(ctx, StepOTP), ErrNoSession)
	_, err := s.HotelInfo(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, s.End(ctx))
	assert.Error(t, s.Begin(ctx, "", "u1"))
}

func TestStore_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	s := New(kv, nil)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, domain.RoleStaff, "s1"))

	step, err := s.AuthStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepEmail, step)

	require.NoError(t, s.SetAuthStep(ctx, StepVerified))
	require.NoError(t, s.SetHotelInfo(ctx, HotelInfo{HotelKey: "h1", Name: "Spice Route"}))
	require.NoError(t, s.SetTables(ctx, []domain.Table{{ID: "t1", TableNumber: "1", Seats: 2}}))

	assert.True(t, mr.Exists("session:staff:s1:hotelInfo"))
	assert.Equal(t, TTL, mr.TTL("session:staff:s1:tables"))

	step, err = s.AuthStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepVerified, step)

	info, err := s.HotelInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route", info.Name)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)

	require.NoError(t, s.End(ctx))
	assert.False(t, s.Active())
	assert.False(t, mr.Exists("session:staff:s1:hotelInfo"))
	assert.False(t, mr.Exists("session:staff:s1:authStep"))
}

func TestStore_BeginEndsPrevious(t *testing.T) {
	kv := storage.NewMemoryStore(nil)
	s := New(kv, nil)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx, domain.RoleManager, "m1"))
	require.NoError(t, s.SetHotelInfo(ctx, HotelInfo{HotelKey: "h1"}))

	require.NoError(t, s.Begin(ctx, domain.RoleStaff, "s2"))
	_, err := kv.Get(ctx, "session:manager:m1:hotelInfo")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.HotelInfo(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	role, user := s.User()
	assert.Equal(t, domain.RoleStaff, role)
	assert.Equal(t, "s2", user)
}

func TestStore_OTPTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(storage.NewMemoryStore(clock), clock)
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx, domain.RoleGuest, "g1"))

	left, err := s.OTPRemaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, s.StartOTPTimer(ctx, 2*time.Minute))
	clock.Advance(90 * time.Second)

	left, err = s.OTPRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, left)

	clock.Advance(time.Minute)
	left, err = s.OTPRemaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
}
