package extract

import (
	"encoding/json"
	"orderexport/internal/order"
	"orderexport/lib/textutil"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// SchemaVersion identifies which known shape an embedded payload was decoded as.
type SchemaVersion int

const (
	// SchemaUnknown payloads only go through the generic key-path prober.
	SchemaUnknown SchemaVersion = iota
	// SchemaGroups is props.pageProps.initialData.data.order with groups[].items[].
	SchemaGroups
	// SchemaLineItems is the older props.pageProps.order with a flat lineItems[].
	SchemaLineItems
)

func (v SchemaVersion) String() string {
	switch v {
	case SchemaGroups:
		return "groups"
	case SchemaLineItems:
		return "line-items"
	default:
		return "unknown"
	}
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber struct {
	value decimal.Decimal
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	d, ok := order.ParseMoney(s)
	if !ok {
		return nil
	}
	n.value = d
	n.set = true
	return nil
}

type money struct {
	Value        flexNumber `json:"value"`
	DisplayValue string     `json:"displayValue"`
}

func (m *money) normalized() (string, decimal.Decimal, bool) {
	if m == nil {
		return "", decimal.Zero, false
	}
	if m.DisplayValue != "" {
		v := m.Value.value
		if !m.Value.set {
			v, _ = order.ParseMoney(m.DisplayValue)
		}
		return strings.TrimSpace(m.DisplayValue), v, true
	}
	if m.Value.set {
		return order.FormatMoney(m.Value.value), m.Value.value, true
	}
	return "", decimal.Zero, false
}

func (m *money) display() string {
	s, _, _ := m.normalized()
	return s
}

type groupsLineItem struct {
	ProductInfo struct {
		Name string `json:"name"`
	} `json:"productInfo"`
	Quantity  flexNumber `json:"quantity"`
	PriceInfo struct {
		LinePrice *money `json:"linePrice"`
		ItemPrice *money `json:"itemPrice"`
	} `json:"priceInfo"`
}

type groupsPriceDetails struct {
	SubTotal          *money `json:"subTotal"`
	TaxTotal          *money `json:"taxTotal"`
	GrandTotal        *money `json:"grandTotal"`
	DriverTip         *money `json:"driverTip"`
	AssociateDiscount *money `json:"associateDiscount"`
	DeliveryFee       *money `json:"deliveryFee"`
	ExpressFee        *money `json:"expressFee"`
}

type groupsOrder struct {
	Id        string `json:"id"`
	DisplayId string `json:"displayId"`
	OrderDate string `json:"orderDate"`
	Type      string `json:"type"`
	Groups    []struct {
		Status struct {
			Message string `json:"message"`
		} `json:"status"`
		Items []groupsLineItem `json:"items"`
	} `json:"groups"`
	PriceDetails *groupsPriceDetails `json:"priceDetails"`
}

type lineItemsOrder struct {
	OrderNumber string `json:"orderNumber"`
	OrderDate   string `json:"orderDate"`
	Status      string `json:"status"`
	LineItems   []struct {
		Name     string     `json:"name"`
		Quantity flexNumber `json:"quantity"`
		Price    *money     `json:"price"`
	} `json:"lineItems"`
	Subtotal *money `json:"subtotal"`
	Tax      *money `json:"tax"`
	Total    *money `json:"total"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			InitialData struct {
				Data struct {
					Order *groupsOrder `json:"order"`
				} `json:"data"`
			} `json:"initialData"`
			Order *lineItemsOrder `json:"order"`
		} `json:"pageProps"`
	} `json:"props"`
}

// Payload is an embedded JSON document found on a page, decoded both generically and,
// when it matches one, as a known schema version.
type Payload struct {
	Version   SchemaVersion
	Raw       any
	groups    *groupsOrder
	lineItems *lineItemsOrder
}

// DecodePayload decodes raw JSON, a nil result means the bytes are not JSON.
func DecodePayload(raw []byte) *Payload {
	var generic any
	err := json.Unmarshal(raw, &generic)
	if err != nil {
		return nil
	}
	p := &Payload{Raw: generic}

	var typed nextData
	err = json.Unmarshal(raw, &typed)
	if err != nil {
		return p
	}
	switch {
	case typed.Props.PageProps.InitialData.Data.Order != nil && len(typed.Props.PageProps.InitialData.Data.Order.Groups) > 0:
		p.Version = SchemaGroups
		p.groups = typed.Props.PageProps.InitialData.Data.Order
	case typed.Props.PageProps.Order != nil && len(typed.Props.PageProps.Order.LineItems) > 0:
		p.Version = SchemaLineItems
		p.lineItems = typed.Props.PageProps.Order
	}
	return p
}

const payloadSelector = `script#__NEXT_DATA__, script[type="application/json"], script[type="application/ld+json"]`

// FindPayloads returns every decodable embedded JSON payload under sel, known schema
// versions first.
func FindPayloads(sel *goquery.Selection) []*Payload {
	var known, unknown []*Payload
	sel.Find(payloadSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		p := DecodePayload([]byte(text))
		if p == nil {
			return
		}
		if p.Version != SchemaUnknown {
			known = append(known, p)
			return
		}
		unknown = append(unknown, p)
	})
	return append(known, unknown...)
}

// typedItems returns the items of a known schema version, nil for SchemaUnknown.
func (p *Payload) typedItems() []order.Item {
	var items []order.Item
	switch p.Version {
	case SchemaGroups:
		for _, g := range p.groups.Groups {
			for _, it := range g.Items {
				price := it.PriceInfo.LinePrice
				if price == nil {
					price = it.PriceInfo.ItemPrice
				}
				display, value, _ := price.normalized()
				items = append(items, order.NewItem(
					strings.TrimSpace(it.ProductInfo.Name),
					flexQuantity(it.Quantity),
					display,
					value,
				))
			}
		}
	case SchemaLineItems:
		for _, it := range p.lineItems.LineItems {
			display, value, _ := it.Price.normalized()
			items = append(items, order.NewItem(
				strings.TrimSpace(it.Name),
				flexQuantity(it.Quantity),
				display,
				value,
			))
		}
	}
	return items
}

func flexQuantity(n flexNumber) int {
	if !n.set {
		return 1
	}
	q, err := strconv.Atoi(n.value.Truncate(0).String())
	if err != nil || q < 1 {
		return 1
	}
	return q
}

func (d *groupsPriceDetails) meta() OrderMeta {
	if d == nil {
		return OrderMeta{}
	}
	return OrderMeta{
		Subtotal:          d.SubTotal.display(),
		Tax:               d.TaxTotal.display(),
		Total:             d.GrandTotal.display(),
		DriverTip:         d.DriverTip.display(),
		AssociateDiscount: d.AssociateDiscount.display(),
		DeliveryFee:       d.DeliveryFee.display(),
		ExpressFee:        d.ExpressFee.display(),
	}
}

func typedStatus(raw string) string {
	if raw == "" {
		return order.StatusUnknown
	}
	if known := ExtractStatus(raw); known != order.StatusUnknown {
		return known
	}
	return raw
}

// typedOrder converts a known schema version into an online order. It reports false for
// SchemaUnknown and for payloads that describe a store purchase.
func (p *Payload) typedOrder(orderId string) (order.Order, bool) {
	o := order.New(orderId, order.TypeOnline)
	var meta OrderMeta
	switch p.Version {
	case SchemaGroups:
		if strings.Contains(strings.ToUpper(p.groups.Type), "STORE") {
			return o, false
		}
		if number := textutil.FirstNonEmpty(p.groups.DisplayId, p.groups.Id); number != "" {
			o.OrderNumber = number
		}
		o.OrderDate = NormalizeDate(p.groups.OrderDate)
		if len(p.groups.Groups) > 0 {
			o.Status = typedStatus(p.groups.Groups[0].Status.Message)
		}
		meta = p.groups.PriceDetails.meta()
	case SchemaLineItems:
		if p.lineItems.OrderNumber != "" {
			o.OrderNumber = p.lineItems.OrderNumber
		}
		o.OrderDate = NormalizeDate(p.lineItems.OrderDate)
		o.Status = typedStatus(p.lineItems.Status)
		meta = OrderMeta{
			Subtotal: p.lineItems.Subtotal.display(),
			Tax:      p.lineItems.Tax.display(),
			Total:    p.lineItems.Total.display(),
		}
	default:
		return o, false
	}
	if o.OrderId == "" {
		o.OrderId = o.OrderNumber
	}
	o.Items = finalizeItems(p.typedItems())
	meta.applyTotals(&o)
	return o, true
}
