package orders

import (
	"encoding/json"
	"errors"
	"testing"

	"dineqr/internal/domain"
	"dineqr/internal/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	*socket.Dispatcher
	joins   []string
	scopes  []domain.Scope
	joinErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{Dispatcher: socket.NewDispatcher()}
}

func (f *fakeSource) Join(event string, scope domain.Scope) error {
	f.joins = append(f.joins, event)
	f.scopes = append(f.scopes, scope)
	return f.joinErr
}

func (f *fakeSource) push(event, data string) {
	f.Dispatch(socket.Envelope{Event: event, Data: json.RawMessage(data)})
}

func TestTrack_PendingView(t *testing.T) {
	src := newFakeSource()
	board := NewBoard()
	changes := 0
	scope := domain.Scope{HotelKey: "hotel-1"}

	tracking, err := Track(src, PendingView, scope, board, func() { changes++ })
	require.NoError(t, err)
	defer tracking.Close()

	assert.Equal(t, []string{socket.EventJoinHotelOrders}, src.joins)
	assert.Equal(t, scope, src.scopes[0])

	src.push(socket.EventInitialOrders, `[{"_id":"a"},{"_id":"b"}]`)
	src.push(socket.EventNewOrder, `{"_id":{"$oid":"c"},"tableNumber":"7"}`)
	assert.Equal(t, 3, board.Len())

	// Accepted orders leave the pending view.
	src.push(socket.EventNewOrder, `{"_id":"a","orderAccepted":true}`)
	assert.Equal(t, 2, board.Len())

	// A fresh snapshot replaces what was held.
	src.push(socket.EventInitialOrders, `[{"_id":"z"}]`)
	require.Equal(t, 1, board.Len())
	assert.Equal(t, "z", board.Orders()[0].ID)

	assert.Equal(t, 4, changes)
}

func TestTrack_CookingView(t *testing.T) {
	src := newFakeSource()
	board := NewBoard()

	tracking, err := Track(src, CookingView, domain.Scope{HotelKey: "hotel-1"}, board, nil)
	require.NoError(t, err)

	src.push(socket.EventConfirmOrders, `[{"_id":"a","orderAccepted":true},{"_id":"b","orderAccepted":true}]`)
	src.push(socket.EventOrderDelivered, `{"_id":"a","orderDelivered":true}`)
	src.push(socket.EventConfirmOrders, `{"_id":"b","orderCancelled":true}`)
	assert.Equal(t, 0, board.Len())

	src.push(socket.EventConfirmOrders, `{"_id":"c","orderAccepted":true}`)
	assert.Equal(t, 1, board.Len())

	tracking.Close()
	src.push(socket.EventConfirmOrders, `{"_id":"d"}`)
	assert.Equal(t, 1, board.Len())
	assert.Equal(t, 0, src.Handlers(socket.EventConfirmOrders))
}

func TestTrack_JoinFailureReleasesSubscriptions(t *testing.T) {
	src := newFakeSource()
	src.joinErr = errors.New("boom")

	tracking, err := Track(src, PendingView, domain.Scope{HotelKey: "h"}, NewBoard(), nil)
	assert.Error(t, err)
	assert.Nil(t, tracking)
	assert.Equal(t, 0, src.Handlers(socket.EventNewOrder))
}

func TestTrack_IgnoresMalformedPayload(t *testing.T) {
	src := newFakeSource()
	board := NewBoard()
	changes := 0

	_, err := Track(src, PendingView, domain.Scope{HotelKey: "h"}, board, func() { changes++ })
	require.NoError(t, err)

	src.push(socket.EventNewOrder, `42`)
	assert.Equal(t, 0, board.Len())
	assert.Equal(t, 0, changes)
}

func TestViewByName(t *testing.T) {
	v, ok := ViewByName("cooking")
	assert.True(t, ok)
	assert.Equal(t, socket.EventJoinHotelConfirmedOrders, v.Join)

	_, ok = ViewByName("history")
	assert.False(t, ok)
}
