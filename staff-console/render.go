package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"dineqr/internal/domain"
	"dineqr/internal/orders"
)

func renderBoard(w io.Writer, title string, list []domain.Order, unread int, now time.Time) {
	fmt.Fprintf(w, "== %s: %d orders, %d unread notifications ==\n", title, len(list), unread)
	if len(list) == 0 {
		fmt.Fprintln(w, "(no orders)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tTABLE\tTYPE\tITEM\tPORTION\tQTY\tSUBTOTAL\tPLACED")
	for _, o := range list {
		placed := orders.Since(o.CreatedAt, now)
		rows := orders.Rows(o)
		if len(rows) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\t-\t%s\n", o.ID, o.TableNumber, o.OrderType, placed)
		}
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
				row.OrderID, row.TableNumber, row.OrderType, row.Item, row.Portion, row.Quantity, row.Subtotal, placed)
		}
		fmt.Fprintf(tw, "\t\t\t\t\tTOTAL\t%.2f\t\n", orders.Total(o))
	}
	tw.Flush()
}

func renderCart(w io.Writer, items []domain.CartLineItem, total float64) {
	if len(items) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPORTION\tQTY\tSUBTOTAL")
	for _, item := range items {
		for _, p := range item.Portions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", item.Name, p.Size, p.Quantity, p.Subtotal)
		}
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t%.2f\n", total)
	tw.Flush()
}
