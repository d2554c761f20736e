package extract

import (
	"orderexport/internal/order"
	"orderexport/lib/htmlutil"
	"orderexport/lib/textutil"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ItemStrategy is one way of finding line items, an empty result means "found nothing".
type ItemStrategy struct {
	Name    string
	Extract func(sel *goquery.Selection) []order.Item
}

var (
	StructuredStrategy = ItemStrategy{Name: "structured", Extract: StructuredItems}
	LinkStrategy       = ItemStrategy{Name: "product-links", Extract: LinkItems}
	ImageAltStrategy   = ItemStrategy{Name: "image-alt", Extract: ImageAltItems}
	LooseTextStrategy  = ItemStrategy{Name: "loose-text", Extract: LooseTextItems}
)

var (
	// OnlineItemStrategies is the chain used for online order pages.
	OnlineItemStrategies = []ItemStrategy{StructuredStrategy, LinkStrategy, ImageAltStrategy}
	// StoreItemStrategies is the chain used for in-store receipts.
	StoreItemStrategies = []ItemStrategy{StructuredStrategy, LinkStrategy, LooseTextStrategy}
)

// ExtractItems runs strategies in order and returns the first non-empty result along
// with the name of the strategy that produced it.
func ExtractItems(sel *goquery.Selection, strategies ...ItemStrategy) ([]order.Item, string) {
	for _, s := range strategies {
		items := s.Extract(sel)
		if len(items) > 0 {
			return items, s.Name
		}
	}
	return []order.Item{}, ""
}

func finalizeItems(items []order.Item) []order.Item {
	valid := make([]order.Item, 0, len(items))
	for _, it := range items {
		it.Name = htmlutil.CleanText(it.Name)
		if !IsValidProductName(it.Name) {
			continue
		}
		valid = append(valid, it)
	}
	return order.DedupItems(valid)
}

// candidate locations of item groups (or flat item lists) in embedded payloads, newest
// layouts first
var itemGroupPaths = []string{
	"props.pageProps.initialData.data.order.groups_2101",
	"props.pageProps.initialData.data.order.groups",
	"props.pageProps.initialData.data.orderDetails.groups",
	"props.pageProps.initialData.data.purchaseDetails.groups",
	"props.pageProps.initialData.order.groups",
	"props.pageProps.order.groups",
	"props.pageProps.order.lineItems",
	"props.pageProps.initialData.data.order.items",
	"data.order.groups",
	"order.groups",
	"order.lineItems",
	"order.items",
	"groups",
	"lineItems",
	"items",
}

var (
	groupItemsKeys = []string{"items", "lineItems", "products", "itemList"}
	itemNameKeys   = []string{"productInfo.name", "name", "productName", "title", "product.name", "item.name", "description"}
	itemPriceKeys  = []string{"priceInfo.linePrice", "priceInfo.itemPrice", "priceInfo.price", "linePrice", "price", "itemPrice", "unitPrice", "total", "amount"}
	itemQtyKeys    = []string{"quantity", "qty", "quantityOrdered", "orderedQuantity", "quantityInfo.quantity", "count"}
)

// itemFromObject reads one line item out of an object of unknown shape.
func itemFromObject(obj any) (order.Item, bool) {
	name := FirstString(obj, itemNameKeys...)
	if name == "" {
		return order.Item{}, false
	}
	var display string
	value := decimal.Zero
	for _, key := range itemPriceKeys {
		raw, ok := Lookup(obj, key)
		if !ok {
			continue
		}
		d, v, ok := NormalizePrice(raw)
		if ok {
			display, value = d, v
			break
		}
	}
	qty, _ := FirstInt(obj, itemQtyKeys...)
	return order.NewItem(name, qty, display, value), true
}

// itemsFromList reads either a list of item groups or a flat list of items.
func itemsFromList(list []any) []order.Item {
	var items []order.Item
	for _, entry := range list {
		inner := FirstArray(entry, groupItemsKeys...)
		if inner != nil {
			for _, raw := range inner {
				it, ok := itemFromObject(raw)
				if ok {
					items = append(items, it)
				}
			}
			continue
		}
		it, ok := itemFromObject(entry)
		if ok {
			items = append(items, it)
		}
	}
	return items
}

// ItemsFromObject probes an already decoded document for line items.
func ItemsFromObject(obj any) []order.Item {
	for _, path := range itemGroupPaths {
		list := FirstArray(obj, path)
		if list == nil {
			continue
		}
		items := finalizeItems(itemsFromList(list))
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// StructuredItems reads items out of the page's embedded JSON payloads. Known schema
// versions are decoded with static types, anything else goes through the key-path prober.
func StructuredItems(sel *goquery.Selection) []order.Item {
	for _, p := range FindPayloads(sel) {
		items := finalizeItems(p.typedItems())
		if len(items) > 0 {
			return items
		}
		items = ItemsFromObject(p.Raw)
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

const maxLinkAscent = 20

var (
	productHrefRegex = regexp.MustCompile(`/ip/(?:[^/?#]+/)?(\d+)`)
	currencyRegex    = regexp.MustCompile(`-?\$\s?[\d,]+\.\d{2}`)
)

const priceSelector = `[data-testid*="price"], [class*="price"], [class*="Price"], [itemprop="price"], [data-automation-id*="price"]`

func priceIn(container *goquery.Selection) string {
	var found string
	container.Find(priceSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := currencyRegex.FindString(s.Text())
		if m == "" {
			m = currencyRegex.FindString(s.AttrOr("aria-label", ""))
		}
		if m != "" {
			found = m
			return false
		}
		return true
	})
	if found != "" {
		return spaceRemover.Replace(found)
	}
	return spaceRemover.Replace(currencyRegex.FindString(htmlutil.VisibleText(container)))
}

func productHrefs(container *goquery.Selection) map[string]struct{} {
	hrefs := map[string]struct{}{}
	container.Find(`a[href*="/ip/"]`).Each(func(_ int, a *goquery.Selection) {
		groups := productHrefRegex.FindStringSubmatch(a.AttrOr("href", ""))
		if len(groups) >= 2 {
			hrefs[groups[1]] = struct{}{}
		}
	})
	return hrefs
}

func linkName(a *goquery.Selection) string {
	return htmlutil.CleanText(textutil.FirstNonEmpty(
		htmlutil.VisibleText(a),
		a.AttrOr("aria-label", ""),
		a.AttrOr("title", ""),
		a.Find("img[alt]").First().AttrOr("alt", ""),
	))
}

// LinkItems finds product-detail anchors and looks upward for each one's price and
// quantity. Ascent stops before an ancestor that holds a different product.
func LinkItems(sel *goquery.Selection) []order.Item {
	var items []order.Item
	sel.Find(`a[href*="/ip/"]`).Each(func(_ int, a *goquery.Selection) {
		groups := productHrefRegex.FindStringSubmatch(a.AttrOr("href", ""))
		if len(groups) < 2 {
			return
		}
		name, qtyFromAlt := SplitQuantitySuffix(linkName(a))
		if !IsValidProductName(name) {
			return
		}

		var price string
		container := a
		for _, ancestor := range htmlutil.Ancestors(a, maxLinkAscent) {
			if len(productHrefs(ancestor)) > 1 {
				break
			}
			container = ancestor
			price = priceIn(ancestor)
			if price != "" {
				break
			}
		}

		qty := ExtractQuantity(htmlutil.VisibleText(container))
		if qty == 1 {
			qty = qtyFromAlt
		}
		value, _ := order.ParseMoney(price)
		items = append(items, order.NewItem(name, qty, price, value))
	})
	return finalizeItems(items)
}

// ImageAltItems treats product-looking image alt texts as item names. Prices are not
// available this way.
func ImageAltItems(sel *goquery.Selection) []order.Item {
	var items []order.Item
	sel.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt := htmlutil.CleanText(img.AttrOr("alt", ""))
		if !looksLikeProductAlt(alt) {
			return
		}
		name, qty := SplitQuantitySuffix(alt)
		items = append(items, order.NewItem(name, qty, "", decimal.Zero))
	})
	return finalizeItems(items)
}

var looseLineRegex = regexp.MustCompile(`^(.{10,80}?)\s*(-?\$\s?[\d,]+(?:\.\d{2})?)(?:\s+(?:Qty|Quantity)\s*:?\s*(\d{1,4}))?\s*$`)

// LooseTextItems scans every visible line for "<name> $<amount> [Qty N]". Meant for
// receipt style pages only.
func LooseTextItems(sel *goquery.Selection) []order.Item {
	var items []order.Item
	for _, line := range strings.Split(htmlutil.VisibleText(sel), "\n") {
		groups := looseLineRegex.FindStringSubmatch(line)
		if len(groups) < 3 {
			continue
		}
		name := strings.TrimSpace(groups[1])
		if !IsValidProductName(name) {
			continue
		}
		price := spaceRemover.Replace(groups[2])
		value, _ := order.ParseMoney(price)
		qty := 1
		if groups[3] != "" {
			qty = ExtractQuantity("Qty " + groups[3])
		}
		items = append(items, order.NewItem(name, qty, price, value))
	}
	return finalizeItems(items)
}
