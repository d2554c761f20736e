package extract

import (
	"orderexport/internal/order"
	"orderexport/lib/textutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxOrderSearchDepth = 12

var orderObjectPaths = []string{
	"props.pageProps.initialData.data.order",
	"props.pageProps.initialData.data.orderDetails",
	"props.pageProps.initialData.data.purchaseDetails",
	"props.pageProps.initialData.order",
	"props.pageProps.order",
	"data.order",
	"order",
}

var (
	orderNumberKeys = []string{"displayId", "orderNumber", "orderNo", "order_number", "id"}
	orderDateKeys   = []string{"orderDate", "orderPlacedDate", "placedDate", "orderPlacedAt", "createdDate", "purchaseDate", "date"}
	orderStatusKeys = []string{"status.message", "status.displayName", "status.text", "groups.0.status.message", "orderStatus", "status", "fulfillmentStatus"}
	orderTypeKeys   = []string{"type", "orderType", "purchaseType", "channel"}

	transactionCodeKeys = []string{"tcNumber", "transactionCode", "tc", "receipt.tcNumber", "receiptInfo.tcNumber"}
	storeNameKeys       = []string{"store.name", "store.displayName", "storeName", "storeInfo.name", "purchaseLocation.name"}
	storeStreetKeys     = []string{"store.address.addressLineOne", "store.address.street", "store.address.line1", "storeInfo.address.addressLineOne"}
	storeCityKeys       = []string{"store.address.city", "storeInfo.address.city"}
	storeStateKeys      = []string{"store.address.state", "store.address.stateOrProvinceCode", "storeInfo.address.state"}
	storeZipKeys        = []string{"store.address.postalCode", "store.address.zip", "storeInfo.address.postalCode"}
)

func hasNamedFirstItem(v any) bool {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return false
	}
	return FirstString(arr[0], itemNameKeys...) != ""
}

// looksLikeOrder matches an object that has a non-empty items/lineItems array whose first
// element has a name, or groups whose first group does.
func looksLikeOrder(obj map[string]any) bool {
	for _, key := range []string{"items", "lineItems"} {
		if hasNamedFirstItem(obj[key]) {
			return true
		}
	}
	groups, ok := obj["groups"].([]any)
	if ok && len(groups) > 0 {
		if g, ok := groups[0].(map[string]any); ok {
			return hasNamedFirstItem(g["items"])
		}
	}
	return false
}

// FindOrderObject locates the order-shaped object in a decoded payload, first through
// the known key paths then by a depth bounded search.
func FindOrderObject(obj any) (map[string]any, bool) {
	for _, p := range orderObjectPaths {
		v, ok := Lookup(obj, p)
		if !ok {
			continue
		}
		m, ok := v.(map[string]any)
		if ok && looksLikeOrder(m) {
			return m, true
		}
	}
	return FindDeep(obj, maxOrderSearchDepth, looksLikeOrder)
}

// IsStructuredStorePurchase reports whether a decoded order object describes an
// in-store purchase.
func IsStructuredStorePurchase(obj any) bool {
	if FirstString(obj, transactionCodeKeys...) != "" {
		return true
	}
	switch strings.ToUpper(FirstString(obj, orderTypeKeys...)) {
	case "IN_STORE", "INSTORE", "STORE", "STORE_PURCHASE":
		return true
	}
	return false
}

func structuredStatus(obj any) string {
	raw := FirstString(obj, orderStatusKeys...)
	if raw == "" {
		return order.StatusUnknown
	}
	if known := ExtractStatus(strings.ReplaceAll(raw, "_", " ")); known != order.StatusUnknown {
		return known
	}
	return raw
}

// ParseFromStructuredData normalizes an order-shaped object of unknown schema version
// into an online order. Objects that describe store purchases are handed to
// ParseStructuredStorePurchase.
func ParseFromStructuredData(obj any, orderId string) order.Order {
	if IsStructuredStorePurchase(obj) {
		return ParseStructuredStorePurchase(obj, orderId)
	}

	o := order.New(orderId, order.TypeOnline)
	if number := FirstString(obj, orderNumberKeys...); number != "" {
		o.OrderNumber = number
	}
	if o.OrderId == "" {
		o.OrderId = o.OrderNumber
	}
	o.OrderDate = NormalizeDate(FirstString(obj, orderDateKeys...))
	o.Status = structuredStatus(obj)
	if items := ItemsFromObject(obj); items != nil {
		o.Items = items
	}

	MetaFromObject(obj).applyTotals(&o)
	return o
}

// ParseStructuredStorePurchase is ParseFromStructuredData for in-store receipts.
func ParseStructuredStorePurchase(obj any, orderId string) order.Order {
	code := FirstString(obj, transactionCodeKeys...)
	if code != "" && !strings.HasPrefix(code, "TC#") {
		code = "TC# " + code
	}
	if orderId == "" {
		orderId = TransactionDigits(code)
	}

	o := order.New(orderId, order.TypeStore)
	o.Status = order.StatusStorePurchase
	o.OrderNumber = textutil.FirstNonEmpty(code, orderId)
	o.OrderDate = NormalizeDate(FirstString(obj, orderDateKeys...))
	if items := ItemsFromObject(obj); items != nil {
		o.Items = items
	}

	meta := MetaFromObject(obj)
	o.Subtotal = meta.Subtotal
	o.Tax = meta.Tax
	o.Total = meta.Total
	o.AssociateDiscount = meta.AssociateDiscount

	o.StoreLocation.Name = FirstString(obj, storeNameKeys...)
	var address []string
	if street := FirstString(obj, storeStreetKeys...); street != "" {
		address = append(address, street)
	}
	if city := FirstString(obj, storeCityKeys...); city != "" {
		address = append(address, city)
	}
	stateZip := strings.TrimSpace(FirstString(obj, storeStateKeys...) + " " + FirstString(obj, storeZipKeys...))
	if stateZip != "" {
		address = append(address, stateZip)
	}
	o.StoreLocation.Address = strings.Join(address, ", ")
	return o
}

func pageMarkup(doc *goquery.Document) string {
	markup, err := doc.Html()
	if err != nil {
		return ""
	}
	return markup
}

var orderNumberRegex = regexp.MustCompile(`(?i)order\s*(?:#|number|no\.?)\s*:?\s*(\d[\d-]{5,})`)

type labeledField struct {
	target *string
	label  PriceLabel
}

// fillLabeledTotals sets every empty money field of o that has a label in text. Delivery
// related fees only apply to online orders.
func fillLabeledTotals(o *order.Order, text string, online bool) {
	fields := []labeledField{
		{&o.Subtotal, LabelSubtotal},
		{&o.Tax, LabelTax},
		{&o.Total, LabelTotal},
		{&o.AssociateDiscount, LabelAssociateDiscount},
	}
	if online {
		fields = append(fields,
			labeledField{&o.DriverTip, LabelDriverTip},
			labeledField{&o.DeliveryFee, LabelDeliveryFee},
			labeledField{&o.ExpressFee, LabelExpressFee},
		)
	}
	for _, f := range fields {
		if *f.target != "" {
			continue
		}
		*f.target = ExtractLabeledPrice(text, f.label)
	}
}

// ParseOnlineOrder builds an online order from its detail page. The embedded payload is
// tried first, then whatever it did not provide is filled in from the page text and markup.
func ParseOnlineOrder(doc *goquery.Document, orderId string) order.Order {
	o := order.New(orderId, order.TypeOnline)
	for _, p := range FindPayloads(doc.Selection) {
		if typed, ok := p.typedOrder(orderId); ok {
			o = typed
			break
		}
		obj, ok := FindOrderObject(p.Raw)
		if !ok {
			continue
		}
		parsed := ParseFromStructuredData(obj, orderId)
		if parsed.IsStore() {
			continue
		}
		o = parsed
		break
	}

	text := MainText(doc)

	if o.OrderDate == order.UnknownDate {
		o.OrderDate = ExtractOrderDate(text)
	}
	if o.OrderNumber == "" || o.OrderNumber == orderId {
		if groups := orderNumberRegex.FindStringSubmatch(text); len(groups) >= 2 {
			o.OrderNumber = groups[1]
		}
	}
	if o.OrderId == "" {
		o.OrderId = o.OrderNumber
	}
	if o.Status == order.StatusUnknown {
		o.Status = ExtractStatus(text)
	}

	// some amounts only exist in attributes (aria-label, data-*), not in rendered text
	fillLabeledTotals(&o, text+"\n"+pageMarkup(doc), true)

	if len(o.Items) == 0 {
		o.Items, _ = ExtractItems(doc.Selection, OnlineItemStrategies...)
	}
	return o
}

// ParseStorePurchase builds a store purchase from its receipt page.
func ParseStorePurchase(doc *goquery.Document, orderId string) order.Order {
	text := MainText(doc)

	code := ExtractTransactionCode(text)
	if orderId == "" {
		orderId = TransactionDigits(code)
	}

	o := order.New(orderId, order.TypeStore)
	o.Status = order.StatusStorePurchase
	if code != "" {
		o.OrderNumber = code
	}
	o.OrderDate = ExtractMonthDate(text)
	o.Items, _ = ExtractItems(doc.Selection, StoreItemStrategies...)
	fillLabeledTotals(&o, text+"\n"+pageMarkup(doc), false)
	o.StoreLocation = ExtractStoreLocation(text)
	return o
}

// ParseOrderPage picks the store or online parser for a detail page.
func ParseOrderPage(pageURL string, doc *goquery.Document, orderId string) order.Order {
	if IsStorePurchase(pageURL, doc) {
		return ParseStorePurchase(doc, orderId)
	}
	return ParseOnlineOrder(doc, orderId)
}
