package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_MergeIsIdempotent(t *testing.T) {
	payload := []byte(`{"_id":"o1","tableNumber":"A1","orderAccepted":true,
		"items":[{"name":"Paneer Tikka","portions":[{"portion":"half","price":120,"quantity":2,"subtotal":240}]}]}`)

	once := NewBoard()
	require.NoError(t, once.Apply(payload))

	twice := NewBoard()
	require.NoError(t, twice.Apply(payload))
	require.NoError(t, twice.Apply(payload))

	assert.Equal(t, once.Orders(), twice.Orders())
	assert.Equal(t, 1, twice.Len())
}

func TestBoard_MergePreservesUntouchedFields(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`{"id":1,"tableNumber":"A1","orderAccepted":false}`)))
	require.NoError(t, board.Apply([]byte(`{"id":1,"orderAccepted":true}`)))

	order, ok := board.Get("1")
	require.True(t, ok)
	assert.Equal(t, "1", order.ID)
	assert.Equal(t, "A1", order.TableNumber)
	assert.True(t, order.OrderAccepted)
	assert.Equal(t, 1, board.Len())
}

func TestBoard_NormalizesIdentifierShapes(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`{"_id":{"$oid":"abc"},"tableNumber":"T4"}`)))
	require.NoError(t, board.Apply([]byte(`{"_id":"abc","paymentStatus":"paid"}`)))

	require.Equal(t, 1, board.Len())
	order, ok := board.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "T4", order.TableNumber)
	assert.Equal(t, "paid", order.PaymentStatus)
}

func TestBoard_TerminalRemoval(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`[{"_id":"X","tableNumber":"1"},{"_id":"Y"}]`)))
	require.NoError(t, board.Apply([]byte(`{"_id":"X","orderAccepted":true}`)))

	assert.Equal(t, 1, board.Remove(IDs([]byte(`{"_id":{"$oid":"X"}}`))...))

	_, ok := board.Get("X")
	assert.False(t, ok)
	for _, o := range board.Orders() {
		assert.NotEqual(t, "X", o.ID)
	}

	assert.Equal(t, 0, board.Remove("X"))
	assert.Equal(t, 1, board.Len())
}

func TestBoard_KeepsArrivalOrder(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`[{"_id":"a"},{"_id":"b"},{"_id":"c"}]`)))
	require.NoError(t, board.Apply([]byte(`{"_id":"a","tableNumber":"9"}`)))

	var ids []string
	for _, o := range board.Orders() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestBoard_MissingIdentifierUsesSentinel(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`{"tableNumber":"5"}`)))
	require.NoError(t, board.Apply([]byte(`{"tableNumber":"6"}`)))

	// Two unidentifiable orders collapse into one row.
	require.Equal(t, 1, board.Len())
	order, ok := board.Get("unknown-id")
	require.True(t, ok)
	assert.Equal(t, "6", order.TableNumber)
}

func TestBoard_KeepsRecordsWithUnusableFields(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`[{"_id":"good"},{"_id":"bad","items":"not-a-list"}]`)))
	assert.Equal(t, 2, board.Len())

	require.NoError(t, board.Apply([]byte(`{"_id":"o2","tableNumber":"B2","paymentStatus":"paid"}`)))
	require.NoError(t, board.Apply([]byte(`{"_id":"o2","paymentStatus":{"bad":1},"orderAccepted":"maybe","orderedBy":7}`)))

	order, ok := board.Get("o2")
	require.True(t, ok)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.Equal(t, "B2", order.TableNumber)
	assert.False(t, order.OrderAccepted)

	require.NoError(t, board.Apply([]byte(`{"_id":"o3","items":[{"name":"Tea","portions":[{"portion":"cup","price":"ten","quantity":1.5}]}]}`)))
	order, ok = board.Get("o3")
	require.True(t, ok)
	require.Len(t, order.Items, 1)
	require.Len(t, order.Items[0].Portions, 1)
	assert.Equal(t, "cup", order.Items[0].Portions[0].Size)
	assert.Zero(t, order.Items[0].Portions[0].Price)
	assert.Zero(t, order.Items[0].Portions[0].Quantity)
}

func TestBoard_CoercesLooselyTypedScalars(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`{"_id":"o1","tableNumber":4,
		"items":[{"name":"Dosa","portions":[{"portion":"full","price":"120","quantity":"2","subtotal":" 240.50 "}]}]}`)))

	order, ok := board.Get("o1")
	require.True(t, ok)
	require.Len(t, order.Items, 1)
	portion := order.Items[0].Portions[0]
	assert.Equal(t, 120.0, portion.Price)
	assert.Equal(t, 2, portion.Quantity)
	assert.Equal(t, 240.5, portion.Subtotal)

	require.NoError(t, board.Apply([]byte(`{"_id":"o1","orderAccepted":"true","orderDelivered":"0"}`)))

	order, ok = board.Get("o1")
	require.True(t, ok)
	assert.True(t, order.OrderAccepted)
	assert.False(t, order.OrderDelivered)
	assert.Equal(t, "4", order.TableNumber)
	assert.Len(t, order.Items, 1)
}

func TestBoard_RejectsScalarPayload(t *testing.T) {
	board := NewBoard()
	assert.ErrorIs(t, board.Apply([]byte(`"o1"`)), ErrInvalidPayload)
	assert.ErrorIs(t, board.Apply(nil), ErrInvalidPayload)
}

func TestNormalize_Timestamps(t *testing.T) {
	board := NewBoard()
	require.NoError(t, board.Apply([]byte(`{"_id":"t1","tableNumber":12,
		"createdAt":{"$date":"2025-03-01T12:30:00Z"},"updatedAt":"not a time"}`)))

	order, ok := board.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "12", order.TableNumber)
	assert.Equal(t, 2025, order.CreatedAt.Year())
	assert.True(t, order.UpdatedAt.IsZero())
}

func TestIDs(t *testing.T) {
	assert.Equal(t, []string{"x"}, IDs([]byte(`"x"`)))
	assert.Equal(t, []string{"x"}, IDs([]byte(`{"orderId":{"$oid":"x"}}`)))
	assert.Equal(t, []string{"x", "y"}, IDs([]byte(`["x",{"_id":"y"}]`)))
	assert.Empty(t, IDs([]byte(`null`)))
	assert.Empty(t, IDs(nil))
}
