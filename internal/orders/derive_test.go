package orders

import (
	"testing"
	"time"

	"dineqr/internal/domain"

	"github.com/stretchr/testify/assert"
)

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "o1",
		TableNumber: "A1",
		OrderType:   domain.OrderTypeDineIn,
		Items: []domain.OrderItem{
			{Name: "Biryani", Portions: []domain.Portion{
				{Size: "half", Price: 150, Quantity: 2, Subtotal: 300},
				{Size: "full", Price: 280, Quantity: 1},
			}},
			{Name: "Lassi", Portions: []domain.Portion{
				{Size: "full", Price: 60.5, Quantity: 3},
			}},
		},
	}
}

func TestRows_FlattensPortions(t *testing.T) {
	rows := Rows(sampleOrder())

	assert.Len(t, rows, 3)
	assert.Equal(t, Row{
		OrderID: "o1", TableNumber: "A1", OrderType: domain.OrderTypeDineIn,
		Item: "Biryani", Portion: "full", Quantity: 1, Price: 280, Subtotal: 280,
	}, rows[1])
	assert.Equal(t, 181.5, rows[2].Subtotal)
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 761.5, Total(sampleOrder()))
	assert.Equal(t, 0.0, Total(domain.Order{}))
}

func TestSince(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		want    string
	}{
		{name: "zero", created: time.Time{}, want: "unknown"},
		{name: "seconds", created: now.Add(-20 * time.Second), want: "just now"},
		{name: "future skew", created: now.Add(time.Minute), want: "just now"},
		{name: "one minute", created: now.Add(-time.Minute), want: "1 min ago"},
		{name: "minutes", created: now.Add(-42 * time.Minute), want: "42 mins ago"},
		{name: "hours", created: now.Add(-3 * time.Hour), want: "3 hrs ago"},
		{name: "days", created: now.Add(-49 * time.Hour), want: "2 days ago"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.want, Since(testCase.created, now))
		})
	}
}
