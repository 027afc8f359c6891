package orders

import (
	"math"
	"time"

	"dineqr/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Row is one (item, portion) pair of an order, flattened for tabular display.
type Row struct {
	OrderID     string
	TableNumber string
	OrderType   domain.OrderType
	Item        string
	Portion     string
	Quantity    int
	Price       float64
	Subtotal    float64
}

func Rows(o domain.Order) []Row {
	var rows []Row
	for _, item := range o.Items {
		for _, p := range item.Portions {
			rows = append(rows, Row{
				OrderID:     o.ID,
				TableNumber: o.TableNumber,
				OrderType:   o.OrderType,
				Item:        item.Name,
				Portion:     p.Size,
				Quantity:    p.Quantity,
				Price:       p.Price,
				Subtotal:    subtotal(p).InexactFloat64(),
			})
		}
	}
	return rows
}

// Total sums portion subtotals, falling back to price × quantity for
// portions that carry no subtotal.
func Total(o domain.Order) float64 {
	sum := decimal.Zero
	for _, item := range o.Items {
		for _, p := range item.Portions {
			sum = sum.Add(subtotal(p))
		}
	}
	return sum.InexactFloat64()
}

func subtotal(p domain.Portion) decimal.Decimal {
	if p.Subtotal != 0 {
		return decimal.NewFromFloat(p.Subtotal)
	}
	return decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity)))
}

var sinceMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 min %s", DivBy: 1},
	{D: time.Hour, Format: "%d mins %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hr %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hrs %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: time.Duration(math.MaxInt64), Format: "%d days %s", DivBy: humanize.Day},
}

// Since renders how long ago an order was placed. It is computed at render
// time and never stored. Creation times ahead of now read as "just now".
func Since(created, now time.Time) string {
	if created.IsZero() {
		return "unknown"
	}
	if created.After(now) {
		created = now
	}
	return humanize.CustomRelTime(created, now, "ago", "from now", sinceMagnitudes)
}
