// Package order is the normalized record model shared by every extraction path.
package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeOnline Type = "online"
	TypeStore  Type = "store"
)

// Display is the capitalized form written to exports.
func (t Type) Display() string {
	switch t {
	case TypeStore:
		return "Store"
	case TypeOnline:
		return "Online"
	default:
		return string(t)
	}
}

const (
	UnknownDate = "Unknown"

	StatusStorePurchase = "Store purchase"
	StatusErrorFetching = "Error fetching"
	StatusUnknown       = "Unknown"
)

type StoreLocation struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (l StoreLocation) IsZero() bool {
	return l.Name == "" && l.Address == ""
}

// String joins the non-empty parts of the location with " - ".
func (l StoreLocation) String() string {
	parts := make([]string, 0, 2)
	if l.Name != "" {
		parts = append(parts, l.Name)
	}
	if l.Address != "" {
		parts = append(parts, l.Address)
	}
	return strings.Join(parts, " - ")
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// Price is the retailer's display string ("$12.34"), empty when unknown.
	Price string `json:"price"`
	// PriceValue is zero when unknown.
	PriceValue decimal.Decimal `json:"priceValue"`
}

// Order is one purchase transaction. Every money field is a display string, empty when not found.
type Order struct {
	OrderId           string        `json:"orderId"`
	OrderNumber       string        `json:"orderNumber"`
	OrderType         Type          `json:"orderType"`
	OrderDate         string        `json:"orderDate"`
	Status            string        `json:"status"`
	Items             []Item        `json:"items"`
	Subtotal          string        `json:"subtotal"`
	Tax               string        `json:"tax"`
	Total             string        `json:"total"`
	AssociateDiscount string        `json:"associateDiscount"`
	DriverTip         string        `json:"driverTip"`
	DeliveryFee       string        `json:"deliveryFee"`
	ExpressFee        string        `json:"expressFee"`
	StoreLocation     StoreLocation `json:"storeLocation"`
	Error             string        `json:"error,omitempty"`
}

// New creates an order with the "not found" defaults set.
func New(orderId string, orderType Type) Order {
	return Order{
		OrderId:     orderId,
		OrderNumber: orderId,
		OrderType:   orderType,
		OrderDate:   UnknownDate,
		Status:      StatusUnknown,
		Items:       []Item{},
	}
}

// ErrorFetching is the record kept when fetching an order's detail failed.
func ErrorFetching(orderId string, orderType Type, err error) Order {
	o := New(orderId, orderType)
	o.Status = StatusErrorFetching
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func (o Order) IsStore() bool {
	return o.OrderType == TypeStore
}

// ItemCount is the number of line items (not the summed quantity).
func (o Order) ItemCount() int {
	return len(o.Items)
}

// NewItem fills in the quantity default.
func NewItem(name string, quantity int, price string, value decimal.Decimal) Item {
	if quantity < 1 {
		quantity = 1
	}
	return Item{
		Name:       name,
		Quantity:   quantity,
		Price:      price,
		PriceValue: value,
	}
}

// DedupItems drops every item whose exact name was already seen, keeping the first.
func DedupItems(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Name]; ok {
			continue
		}
		seen[it.Name] = struct{}{}
		out = append(out, it)
	}
	return out
}
