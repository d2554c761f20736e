package extract

import (
	"embed"
	"encoding/json"
	"net/url"
	"orderexport/internal/order"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testdata embed.FS

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

func loadDoc(t testing.TB, name string) *goquery.Document {
	t.Helper()
	raw, err := testdata.ReadFile("testdata/" + name)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	require.NoError(t, err)
	return doc
}

func docFromString(t testing.TB, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func item(name string, qty int, price string) order.Item {
	value, _ := order.ParseMoney(price)
	return order.NewItem(name, qty, price, value)
}

func TestIsStorePurchase(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		html   string
		expect bool
	}{
		{name: "query flag", url: "https://www.walmart.com/orders/123?storePurchase=true", expect: true},
		{name: "query flag false", url: "https://www.walmart.com/orders/123?storePurchase=false", html: "<main>Delivered</main>"},
		{name: "transaction code", url: "https://www.walmart.com/orders/123", html: "<main><div>TC# 1234-5678</div></main>", expect: true},
		{name: "online", url: "https://www.walmart.com/orders/123", html: "<main><div>Order# 2000-1111</div></main>"},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			var doc *goquery.Document
			if test.html != "" {
				doc = docFromString(t, test.html)
			}
			require.Equal(t, test.expect, IsStorePurchase(test.url, doc))
		})
	}
}

func TestIsValidProductName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"Great Value Paper Towels", true},
		{"Total Cereal 12 oz", true},
		{"Bananas, each", true},
		{"Discover Kids Science Kit 2024 Edition", true},
		{"Thank You Cards 48 Count", true},
		{"Cash Register Toy Set for Kids", true},
		{"Thank you for shopping with us", false},
		{"Cashier: Jordan", false},
		{"Discover ending in 1111", false},
		{"Subtotal $45.00", false},
		{"Total $45.67", false},
		{"TC# 1234-5678", false},
		{"VISA ****1234", false},
		{"Mastercard ending in 4242", false},
		{"View order details", false},
		{"Delivered on Jan 17", false},
		{"Qty 2", false},
		{"Milk", false},
		{strings.Repeat("x", 201), false},
	}

	for _, test := range cases {
		require.Equal(t, test.valid, IsValidProductName(test.name), test.name)
	}
}

func TestExtractFields(t *testing.T) {
	text := "Order placed Jan 15, 2024\nSubtotal $45.00\nEstimated tax $3.60\nDriver tip $ 5.00\nTotal $53.60"

	require.Equal(t, "Jan 15, 2024", ExtractOrderDate(text))
	require.Equal(t, "$45.00", ExtractLabeledPrice(text, LabelSubtotal))
	require.Equal(t, "$3.60", ExtractLabeledPrice(text, LabelTax))
	require.Equal(t, "$5.00", ExtractLabeledPrice(text, LabelDriverTip))
	require.Equal(t, "$53.60", ExtractLabeledPrice(text, LabelTotal))
	require.Equal(t, "", ExtractLabeledPrice(text, LabelExpressFee))

	counted := "Subtotal (3 items) $45.00\nTax $2.10\nTotal $47.10"
	require.Equal(t, "$45.00", ExtractLabeledPrice(counted, LabelSubtotal))
	require.Equal(t, "$2.10", ExtractLabeledPrice(counted, LabelTax))
	require.Equal(t, "$47.10", ExtractLabeledPrice(counted, LabelTotal))

	require.Equal(t, order.UnknownDate, ExtractOrderDate("no dates here"))
	require.Equal(t, "3/4/2024", ExtractMonthDate("Purchased 3/4/2024 at 10:31"))
	require.Equal(t, "TC# 1234-5678", ExtractTransactionCode("Receipt\nTC# 1234-5678\nTotal $1.00"))
	require.Equal(t, "12345678", TransactionDigits("TC# 1234-5678"))

	name, qty := SplitQuantitySuffix("Great Value Paper Towels, quantity 2")
	require.Equal(t, "Great Value Paper Towels", name)
	require.Equal(t, 2, qty)
	require.Equal(t, 1, ExtractQuantity("no quantity"))
}

func TestParseOrderDate(t *testing.T) {
	cases := []struct {
		in     string
		expect string
		ok     bool
	}{
		{in: "Jan 15, 2024", expect: "2024-01-15", ok: true},
		{in: "Sept. 3, 2023", expect: "2023-09-03", ok: true},
		{in: "March 9 2024", expect: "2024-03-09", ok: true},
		{in: "2/29/2024", expect: "2024-02-29", ok: true},
		{in: "2024-01-15T10:00:00.000Z", expect: "2024-01-15", ok: true},
		{in: order.UnknownDate},
		{in: "yesterday"},
	}

	for _, test := range cases {
		parsed, ok := ParseOrderDate(test.in, nil)
		require.Equal(t, test.ok, ok, test.in)
		if ok {
			require.Equal(t, test.expect, parsed.Format("2006-01-02"), test.in)
		}
	}
}

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		in      any
		display string
		ok      bool
	}{
		{in: 12.5, display: "$12.50", ok: true},
		{in: "$3.00", display: "$3.00", ok: true},
		{in: "7", display: "$7.00", ok: true},
		{in: json.Number("1.25"), display: "$1.25", ok: true},
		{in: map[string]any{"value": 4.0, "displayValue": "$4.00"}, display: "$4.00", ok: true},
		{in: map[string]any{"amount": 2.0}, display: "$2.00", ok: true},
		{in: ""},
		{in: nil},
		{in: true},
	}

	for _, test := range cases {
		display, _, ok := NormalizePrice(test.in)
		require.Equal(t, test.ok, ok, "%v", test.in)
		require.Equal(t, test.display, display, "%v", test.in)
	}
}

func TestProbe(t *testing.T) {
	var obj any
	err := json.Unmarshal([]byte(`{"a":{"b":[{"name":"first"},{"name":"second"}],"n":"3"}}`), &obj)
	require.NoError(t, err)

	v, ok := Lookup(obj, "a.b.1.name")
	require.True(t, ok)
	require.Equal(t, "second", v)

	_, ok = Lookup(obj, "a.b.5.name")
	require.False(t, ok)

	require.Equal(t, "first", FirstString(obj, "missing", "a.b.0.name"))
	require.Len(t, FirstArray(obj, "a.n", "a.b"), 2)

	n, ok := FirstInt(obj, "a.n")
	require.True(t, ok)
	require.Equal(t, 3, n)

	found, ok := FindDeep(obj, 5, func(m map[string]any) bool {
		return m["name"] == "second"
	})
	require.True(t, ok)
	require.Equal(t, "second", found["name"])

	_, ok = FindDeep(obj, 1, func(m map[string]any) bool {
		return m["name"] == "second"
	})
	require.False(t, ok)
}

func TestCollectVisibleOrders(t *testing.T) {
	doc := loadDoc(t, "list_cards.html")
	orders := CollectVisibleOrders(doc)
	require.Len(t, orders, 2)

	online := orders[0]
	require.Equal(t, "200011112222", online.OrderId)
	require.Equal(t, order.TypeOnline, online.OrderType)
	require.Equal(t, "Delivered", online.Status)
	require.Equal(t, "$45.67", online.Total)
	require.Equal(t, "Jan 15, 2024", online.OrderDate)
	if diff := cmp.Diff([]order.Item{item("Great Value Paper Towels", 2, "")}, online.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}

	store := orders[1]
	require.Equal(t, "123456", store.OrderId)
	require.Equal(t, "TC# 123-456", store.OrderNumber)
	require.Equal(t, order.TypeStore, store.OrderType)
	require.Equal(t, order.StatusStorePurchase, store.Status)
	require.Equal(t, "$12.34", store.Total)
	require.Empty(t, store.Items)
}

func TestCollectVisibleOrdersFallback(t *testing.T) {
	doc := loadDoc(t, "list_links.html")
	orders := CollectVisibleOrders(doc)
	require.Len(t, orders, 2)

	require.Equal(t, "300033334444", orders[0].OrderId)
	require.Equal(t, "Mar 5, 2024", orders[0].OrderDate)
	require.Equal(t, "Arriving", orders[0].Status)
	require.Equal(t, "$20.00", orders[0].Total)
	require.Len(t, orders[0].Items, 1)
	require.Equal(t, "Mainstays Bath Towel Set 6 Piece", orders[0].Items[0].Name)

	require.Equal(t, "300055556666", orders[1].OrderId)
	require.Equal(t, "Delivered", orders[1].Status)
	require.Equal(t, "$5.50", orders[1].Total)
}

func TestOrderLinks(t *testing.T) {
	doc := docFromString(t, `<main>
		<a href="/orders/111?storePurchase=true">Store purchase</a>
		<a href="/orders/222">View order</a>
		<a href="/orders/222">Start a return</a>
		<a href="/ip/333">Product</a>
		<a href="/orders/444">Store Receipt</a>
	</main>`)
	base, err := url.Parse("https://www.walmart.com/orders")
	require.NoError(t, err)

	refs := OrderLinks(doc, base)
	require.Len(t, refs, 3)
	require.Equal(t, "111", refs[0].Id)
	require.True(t, refs[0].IsStore)
	require.Equal(t, "222", refs[1].Id)
	require.False(t, refs[1].IsStore)
	require.Equal(t, "https://www.walmart.com/orders/222", refs[1].Href)
	require.Equal(t, "444", refs[2].Id)
	require.True(t, refs[2].IsStore)
}

func TestParseOnlineOrderStructured(t *testing.T) {
	doc := loadDoc(t, "online_next_data.html")
	payloads := FindPayloads(doc.Selection)
	require.NotEmpty(t, payloads)
	require.Equal(t, SchemaGroups, payloads[0].Version)

	o := ParseOnlineOrder(doc, "200011112222")
	require.Equal(t, "200011112222", o.OrderId)
	require.Equal(t, "2000111-12222", o.OrderNumber)
	require.Equal(t, "Jan 15, 2024", o.OrderDate)
	require.Equal(t, "Delivered", o.Status)
	require.Equal(t, "$17.48", o.Subtotal)
	require.Equal(t, "$1.40", o.Tax)
	require.Equal(t, "$21.88", o.Total)
	require.Equal(t, "$3.00", o.DriverTip)
	require.True(t, o.StoreLocation.IsZero())

	expected := []order.Item{
		item("Great Value Paper Towels", 2, "$12.98"),
		item("Equate Ibuprofen Tablets 200mg", 1, "$4.50"),
	}
	if diff := cmp.Diff(expected, o.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseOnlineOrderDom(t *testing.T) {
	doc := loadDoc(t, "online_dom.html")
	o := ParseOnlineOrder(doc, "200022233333")

	require.Equal(t, "2000222-33333", o.OrderNumber)
	require.Equal(t, "Feb 10, 2024", o.OrderDate)
	require.Equal(t, "Arriving", o.Status)
	require.Equal(t, "$33.59", o.Subtotal)
	require.Equal(t, "$2.10", o.Tax)
	require.Equal(t, "$46.64", o.Total)
	require.Equal(t, "$6.95", o.DeliveryFee)
	require.Equal(t, "$4.00", o.DriverTip)
	require.Empty(t, o.ExpressFee)
	require.Empty(t, o.AssociateDiscount)

	expected := []order.Item{
		item("Mainstays Bath Towel, White", 3, "$9.97"),
		item("Great Value Whole Milk 1 gal", 1, "$3.68"),
	}
	if diff := cmp.Diff(expected, o.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseStorePurchase(t *testing.T) {
	doc := loadDoc(t, "store_receipt.html")
	require.True(t, IsStorePurchase("https://www.walmart.com/orders/123456789012", doc))

	o := ParseOrderPage("https://www.walmart.com/orders/123456789012", doc, "")
	require.Equal(t, order.TypeStore, o.OrderType)
	require.Equal(t, "123456789012", o.OrderId)
	require.Equal(t, "TC# 1234-5678-9012", o.OrderNumber)
	require.Equal(t, order.StatusStorePurchase, o.Status)
	require.Equal(t, "Mar 2, 2024", o.OrderDate)
	require.Equal(t, "$4.47", o.Subtotal)
	require.Equal(t, "$0.32", o.Tax)
	require.Equal(t, "$4.34", o.Total)
	require.Equal(t, "-$0.45", o.AssociateDiscount)
	require.Empty(t, o.DriverTip)
	require.Empty(t, o.DeliveryFee)
	require.Equal(t, order.StoreLocation{
		Name:    "Walmart Supercenter #1234",
		Address: "123 Main St, Springfield, IL 62701",
	}, o.StoreLocation)

	expected := []order.Item{
		item("Great Value Large White Eggs 12 Count", 1, "$3.12"),
		item("Bananas, each", 5, "$1.35"),
	}
	if diff := cmp.Diff(expected, o.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseStorePurchaseTableReceipt(t *testing.T) {
	doc := loadDoc(t, "store_receipt_table.html")
	o := ParseOrderPage("https://www.walmart.com/orders/444455556666", doc, "")

	require.Equal(t, order.TypeStore, o.OrderType)
	require.Equal(t, "TC# 4444-5555-6666", o.OrderNumber)
	require.Equal(t, "$37.39", o.Subtotal)
	require.Equal(t, "$2.24", o.Tax)
	require.Equal(t, "$39.63", o.Total)

	expected := []order.Item{
		item("Great Value Whole Milk 1 Gal", 1, "$3.48"),
		item("Cash Register Toy Set for Kids", 2, "$19.97"),
		item("Thank You Cards 48 Count", 1, "$6.97"),
	}
	if diff := cmp.Diff(expected, LooseTextItems(doc.Selection), decimalEqual); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(expected, o.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}
}

func TestExtractItemsChain(t *testing.T) {
	doc := docFromString(t, `<main>
		<div>Great Value Large White Eggs $3.12 Qty 2</div>
		<div>Subtotal $3.12</div>
		<div>VISA ****1234 $3.12</div>
	</main>`)

	items, strategy := ExtractItems(doc.Selection, StoreItemStrategies...)
	require.Equal(t, LooseTextStrategy.Name, strategy)
	if diff := cmp.Diff([]order.Item{item("Great Value Large White Eggs", 2, "$3.12")}, items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}

	items, strategy = ExtractItems(doc.Selection, OnlineItemStrategies...)
	require.Empty(t, strategy)
	require.Empty(t, items)
}

func TestParseFromStructuredData(t *testing.T) {
	raw, err := testdata.ReadFile("testdata/order_api.json")
	require.NoError(t, err)
	var obj any
	require.NoError(t, json.Unmarshal(raw, &obj))

	orderObj, ok := FindOrderObject(obj)
	require.True(t, ok)

	o := ParseFromStructuredData(orderObj, "300044445555")
	require.Equal(t, order.TypeOnline, o.OrderType)
	require.Equal(t, "300044445555", o.OrderNumber)
	require.Equal(t, "Mar 10, 2024", o.OrderDate)
	require.Equal(t, "Shipped", o.Status)
	require.Equal(t, "$41.97", o.Subtotal)
	require.Equal(t, "$2.00", o.Tax)
	require.Equal(t, "$49.96", o.Total)
	require.Equal(t, "$5.99", o.DeliveryFee)

	expected := []order.Item{
		item("Mainstays Queen Sheet Set", 1, "$24.97"),
		item("Hefty Trash Bags 30 Gallon", 2, "$8.50"),
	}
	if diff := cmp.Diff(expected, o.Items, decimalEqual); diff != "" {
		t.Fatal(diff)
	}

	detailed, ok := DetailedItemsFromObject(obj)
	require.True(t, ok)
	require.Len(t, detailed.Items, 2)
	require.Equal(t, "$49.96", detailed.Meta.Total)
	require.Equal(t, "Mar 10, 2024", detailed.Meta.OrderDate)
}

func TestParseStructuredStorePurchase(t *testing.T) {
	var obj any
	err := json.Unmarshal([]byte(`{
		"tcNumber": "5555-6666",
		"purchaseDate": "2024-04-01",
		"store": {"name": "Walmart Neighborhood Market", "address": {"addressLineOne": "9 Elm Rd", "city": "Dover", "state": "DE", "postalCode": "19901"}},
		"items": [{"name": "Marketside Caesar Salad Kit", "price": 3.98}],
		"priceDetails": {"subTotal": 3.98, "taxTotal": 0.0, "grandTotal": 3.98, "driverTip": 2.0}
	}`), &obj)
	require.NoError(t, err)
	require.True(t, IsStructuredStorePurchase(obj))

	o := ParseFromStructuredData(obj, "")
	require.Equal(t, order.TypeStore, o.OrderType)
	require.Equal(t, "55556666", o.OrderId)
	require.Equal(t, "TC# 5555-6666", o.OrderNumber)
	require.Equal(t, "Apr 1, 2024", o.OrderDate)
	require.Equal(t, "$3.98", o.Total)
	require.Equal(t, "$0.00", o.Tax)
	require.Empty(t, o.DriverTip)
	require.Equal(t, "Walmart Neighborhood Market - 9 Elm Rd, Dover, DE 19901", o.StoreLocation.String())
	require.Len(t, o.Items, 1)
}

func TestDetailedItemsApplyTo(t *testing.T) {
	detailed := &DetailedItems{
		Items: []order.Item{item("Great Value Paper Towels", 2, "$12.98")},
		Meta:  OrderMeta{OrderDate: "Jan 15, 2024", Total: "$20.00", DriverTip: "$3.00"},
	}

	online := order.New("1", order.TypeOnline)
	online.Total = "$19.00"
	online.Tax = "$1.00"
	detailed.ApplyTo(&online)
	require.Equal(t, "$20.00", online.Total)
	require.Equal(t, "$1.00", online.Tax)
	require.Equal(t, "$3.00", online.DriverTip)
	require.Equal(t, "Jan 15, 2024", online.OrderDate)
	require.Len(t, online.Items, 1)

	store := order.New("2", order.TypeStore)
	store.Total = "$5.00"
	detailed.ApplyTo(&store)
	require.Equal(t, "$5.00", store.Total)
	require.Empty(t, store.DriverTip)
	require.Len(t, store.Items, 1)

	var missing *DetailedItems
	untouched := order.New("3", order.TypeOnline)
	missing.ApplyTo(&untouched)
	require.Equal(t, order.New("3", order.TypeOnline), untouched)
}

func TestDetailedItemsFromDocument(t *testing.T) {
	detailed, ok := DetailedItemsFromDocument(loadDoc(t, "online_next_data.html"))
	require.True(t, ok)
	require.Len(t, detailed.Items, 2)
	require.Equal(t, OrderMeta{
		OrderDate: "Jan 15, 2024",
		Subtotal:  "$17.48",
		Tax:       "$1.40",
		Total:     "$21.88",
		DriverTip: "$3.00",
	}, detailed.Meta)

	_, ok = DetailedItemsFromDocument(loadDoc(t, "online_dom.html"))
	require.False(t, ok)
}
