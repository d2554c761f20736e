package extract

import (
	"orderexport/internal/order"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OrderMeta holds the order level fields a detail lookup can refresh.
type OrderMeta struct {
	OrderDate         string
	Subtotal          string
	Tax               string
	Total             string
	DriverTip         string
	AssociateDiscount string
	DeliveryFee       string
	ExpressFee        string
}

// applyTotals copies every non-empty money field onto o.
func (m OrderMeta) applyTotals(o *order.Order) {
	set := func(target *string, v string) {
		if v != "" {
			*target = v
		}
	}
	set(&o.Subtotal, m.Subtotal)
	set(&o.Tax, m.Tax)
	set(&o.Total, m.Total)
	set(&o.DriverTip, m.DriverTip)
	set(&o.AssociateDiscount, m.AssociateDiscount)
	set(&o.DeliveryFee, m.DeliveryFee)
	set(&o.ExpressFee, m.ExpressFee)
}

// DetailedItems is the result of a lightweight detail lookup.
type DetailedItems struct {
	Items []order.Item
	Meta  OrderMeta
}

// ApplyTo replaces the items of o and overwrites the fields the lookup found. Store
// purchases keep their receipt totals and only take items and the date.
func (d *DetailedItems) ApplyTo(o *order.Order) {
	if d == nil {
		return
	}
	if len(d.Items) > 0 {
		o.Items = d.Items
	}
	if d.Meta.OrderDate != "" && d.Meta.OrderDate != order.UnknownDate {
		o.OrderDate = d.Meta.OrderDate
	}
	if o.IsStore() {
		return
	}
	d.Meta.applyTotals(o)
}

var priceDetailsPaths = []string{
	"priceDetails",
	"order.priceDetails",
	"paymentDetails.priceDetails",
	"payment.priceDetails",
	"totals",
	"orderTotals",
	"summary",
}

var (
	subtotalKeys          = []string{"subTotal", "subtotal", "itemsSubtotal", "subTotalAmount"}
	taxKeys               = []string{"taxTotal", "tax", "totalTax", "taxAmount"}
	totalKeys             = []string{"grandTotal", "total", "orderTotal", "totalAmount"}
	driverTipKeys         = []string{"driverTip", "tip", "tipAmount"}
	associateDiscountKeys = []string{"associateDiscount", "associateDiscountAmount"}
	deliveryFeeKeys       = []string{"deliveryFee", "deliveryCharge"}
	expressFeeKeys        = []string{"expressFee", "expressDeliveryFee"}
)

func priceField(obj any, keys ...string) string {
	for _, key := range keys {
		v, ok := Lookup(obj, key)
		if !ok {
			continue
		}
		display, _, ok := NormalizePrice(v)
		if ok {
			return display
		}
	}
	return ""
}

// feeFromList scans a fees[] array of {label, amount} entries for one whose label
// contains substr.
func feeFromList(obj any, substr string) string {
	for _, entry := range FirstArray(obj, "fees", "charges") {
		label := strings.ToLower(FirstString(entry, "label", "name", "type", "displayName"))
		if !strings.Contains(label, substr) {
			continue
		}
		for _, key := range []string{"amount", "value", "price", "displayValue"} {
			v, ok := Lookup(entry, key)
			if !ok {
				continue
			}
			if display, _, ok := NormalizePrice(v); ok {
				return display
			}
		}
	}
	return ""
}

// MetaFromObject reads order level fields out of a decoded order object, from its price
// details block when it has one and from the object itself otherwise.
func MetaFromObject(obj any) OrderMeta {
	details := obj
	if v, _, ok := FirstOf(obj, priceDetailsPaths...); ok {
		if m, isMap := v.(map[string]any); isMap {
			details = m
		}
	}
	meta := OrderMeta{
		OrderDate:         NormalizeDate(FirstString(obj, orderDateKeys...)),
		Subtotal:          priceField(details, subtotalKeys...),
		Tax:               priceField(details, taxKeys...),
		Total:             priceField(details, totalKeys...),
		DriverTip:         priceField(details, driverTipKeys...),
		AssociateDiscount: priceField(details, associateDiscountKeys...),
		DeliveryFee:       priceField(details, deliveryFeeKeys...),
		ExpressFee:        priceField(details, expressFeeKeys...),
	}
	if meta.DeliveryFee == "" {
		meta.DeliveryFee = feeFromList(details, "delivery")
	}
	if meta.ExpressFee == "" {
		meta.ExpressFee = feeFromList(details, "express")
	}
	return meta
}

// DetailedItemsFromObject extracts items and order meta from a decoded API response. It
// reports false when the response has no items.
func DetailedItemsFromObject(obj any) (*DetailedItems, bool) {
	orderObj, ok := FindOrderObject(obj)
	if !ok {
		return nil, false
	}
	items := ItemsFromObject(orderObj)
	if len(items) == 0 {
		return nil, false
	}
	return &DetailedItems{Items: items, Meta: MetaFromObject(orderObj)}, true
}

// DetailedItemsFromDocument reads items out of a detail page's embedded payloads and
// order meta out of the price details block next to them. Rendered markup is not used.
func DetailedItemsFromDocument(doc *goquery.Document) (*DetailedItems, bool) {
	items := StructuredItems(doc.Selection)
	if len(items) == 0 {
		return nil, false
	}
	detailed := &DetailedItems{Items: items}
	for _, p := range FindPayloads(doc.Selection) {
		if p.Version == SchemaGroups && p.groups.PriceDetails != nil {
			detailed.Meta = p.groups.PriceDetails.meta()
			detailed.Meta.OrderDate = NormalizeDate(p.groups.OrderDate)
			return detailed, true
		}
		obj, ok := FindOrderObject(p.Raw)
		if ok {
			detailed.Meta = MetaFromObject(obj)
			return detailed, true
		}
	}
	return detailed, true
}
