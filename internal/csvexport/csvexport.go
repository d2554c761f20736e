// Package csvexport renders orders as the two CSV layouts users download: one row per
// item (detailed) or one row per order (summary).
package csvexport

import (
	"fmt"
	"orderexport/internal/order"
	"strconv"
	"strings"
	"time"
)

// NoItemsPlaceholder is the item name of the single row written for an order without items.
const NoItemsPlaceholder = "No items found"

var (
	DetailedHeader = []string{
		"Order Number", "Order Date", "Status",
		"Item Name", "Item Price", "Quantity",
		"Subtotal", "Tax", "Order Total", "Order Type",
		"Associate Discount", "Driver Tip", "Delivery Fee", "Express Fee",
		"Store Location",
	}
	SummaryHeader = []string{
		"Order Number", "Order Date", "Status",
		"Item Count",
		"Subtotal", "Tax", "Order Total", "Order Type",
		"Associate Discount", "Driver Tip", "Delivery Fee", "Express Fee",
		"Store Location",
	}
)

// EscapeField quotes s when it contains a comma, a double quote or a newline, doubling
// any quotes inside. Everything else is written as-is.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func row(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}

// head and tail are the order level columns around the item columns.
func head(o order.Order) []string {
	return []string{o.OrderNumber, o.OrderDate, o.Status}
}

func tail(o order.Order) []string {
	return []string{
		o.Subtotal, o.Tax, o.Total, o.OrderType.Display(),
		o.AssociateDiscount, o.DriverTip, o.DeliveryFee, o.ExpressFee,
		o.StoreLocation.String(),
	}
}

func detailedRows(o order.Order) [][]string {
	if len(o.Items) == 0 {
		fields := append(head(o), NoItemsPlaceholder, "", "")
		return [][]string{append(fields, tail(o)...)}
	}
	rows := make([][]string, 0, len(o.Items))
	for _, it := range o.Items {
		fields := append(head(o), it.Name, it.Price, strconv.Itoa(it.Quantity))
		rows = append(rows, append(fields, tail(o)...))
	}
	return rows
}

func summaryRow(o order.Order) []string {
	fields := append(head(o), strconv.Itoa(o.ItemCount()))
	return append(fields, tail(o)...)
}

// Serialize renders orders with the detailed layout when includeItems is set and the
// summary layout otherwise. Rows are joined by "\n" without a trailing newline.
func Serialize(orders []order.Order, includeItems bool) string {
	lines := []string{}
	if includeItems {
		lines = append(lines, row(DetailedHeader))
		for _, o := range orders {
			for _, fields := range detailedRows(o) {
				lines = append(lines, row(fields))
			}
		}
	} else {
		lines = append(lines, row(SummaryHeader))
		for _, o := range orders {
			lines = append(lines, row(summaryRow(o)))
		}
	}
	return strings.Join(lines, "\n")
}

// Filename is "<prefix>_orders_<YYYY-MM-DD>.csv".
func Filename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_orders_%s.csv", prefix, t.Format("2006-01-02"))
}
