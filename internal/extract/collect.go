package extract

import (
	"net/url"
	"orderexport/internal/order"
	"orderexport/lib/htmlutil"
	"orderexport/lib/textutil"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var (
	orderContainerTestId = regexp.MustCompile(`^order-\d+$`)
	orderHrefRegex       = regexp.MustCompile(`/orders/(\d+)`)
	viewOrderLinkRegex   = regexp.MustCompile(`(?i)\bview\s+(?:order|details)\b|\breturn\b|\bstart\s+a\s+return\b`)
	containerHintRegex   = regexp.MustCompile(`(?i)order-?card|order-?item|purchase`)
)

// normalized link labels of in-store receipts
var storeLinkMatchers = []string{"storepurchase", "storereceipt"}

const (
	maxHintAscent     = 10
	fixedFallbackRise = 6
)

// OrderRef identifies an order found on the list page.
type OrderRef struct {
	Id      string
	IsStore bool
	Href    string
}

// orderLink returns the first order-detail link in container.
func orderLink(container *goquery.Selection) (*goquery.Selection, string) {
	var link *goquery.Selection
	var id string
	container.Find(`a[href*="/orders/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		groups := orderHrefRegex.FindStringSubmatch(a.AttrOr("href", ""))
		if len(groups) < 2 {
			return true
		}
		link = a
		id = groups[1]
		return false
	})
	return link, id
}

// orderFromContainer derives a list-page order from the element that wraps one order's
// card, false when no id can be found.
func orderFromContainer(container *goquery.Selection) (order.Order, bool) {
	text := htmlutil.VisibleText(container)
	link, id := orderLink(container)

	code := ExtractTransactionCode(text)
	isStore := code != ""
	if link != nil && HasStorePurchaseFlag(link.AttrOr("href", "")) {
		isStore = true
	}
	if id == "" {
		id = TransactionDigits(code)
	}
	if id == "" {
		return order.Order{}, false
	}

	orderType := order.TypeOnline
	if isStore {
		orderType = order.TypeStore
	}
	o := order.New(id, orderType)
	if code != "" {
		o.OrderNumber = code
	}
	o.Status = ExtractListStatus(text)
	if isStore && o.Status == order.StatusUnknown {
		o.Status = order.StatusStorePurchase
	}
	o.Total = ExtractLabeledPrice(text, LabelTotal)
	o.OrderDate = ExtractOrderDate(text)
	o.Items = ImageAltItems(container)
	return o, true
}

// hintedContainer walks up from link to the nearest ancestor whose test id or class
// names an order card, or to a fixed height when none does.
func hintedContainer(link *goquery.Selection) *goquery.Selection {
	ancestors := htmlutil.Ancestors(link, maxHintAscent)
	for _, a := range ancestors {
		hint := a.AttrOr("data-testid", "") + " " + a.AttrOr("class", "")
		if containerHintRegex.MatchString(hint) {
			return a
		}
	}
	if len(ancestors) == 0 {
		return link
	}
	if len(ancestors) < fixedFallbackRise {
		return ancestors[len(ancestors)-1]
	}
	return ancestors[fixedFallbackRise-1]
}

func appendUnique(orders []order.Order, seen map[string]struct{}, o order.Order) []order.Order {
	if _, dup := seen[o.OrderId]; dup {
		return orders
	}
	seen[o.OrderId] = struct{}{}
	return append(orders, o)
}

// CollectVisibleOrders reads every order card on a list page. Cards are found through
// their order-<N> test ids, and when there are none through their view-order or return
// links instead.
func CollectVisibleOrders(doc *goquery.Document) []order.Order {
	seen := map[string]struct{}{}
	orders := []order.Order{}

	containers := doc.Find("[data-testid]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return orderContainerTestId.MatchString(s.AttrOr("data-testid", ""))
	})
	containers.Each(func(_ int, s *goquery.Selection) {
		o, ok := orderFromContainer(s)
		if ok {
			orders = appendUnique(orders, seen, o)
		}
	})
	if containers.Length() > 0 {
		return orders
	}

	doc.Find("a, button").Each(func(_ int, s *goquery.Selection) {
		label := htmlutil.CleanText(s.Text() + " " + s.AttrOr("aria-label", ""))
		if !viewOrderLinkRegex.MatchString(label) {
			return
		}
		o, ok := orderFromContainer(hintedContainer(s))
		if ok {
			orders = appendUnique(orders, seen, o)
		}
	})
	return orders
}

// OrderLinks enumerates distinct order-detail links on a page, resolved against base.
func OrderLinks(doc *goquery.Document, base *url.URL) []OrderRef {
	seen := map[string]struct{}{}
	var refs []OrderRef
	for _, anchor := range htmlutil.GetAnchors(base, doc.Find("a[href]")) {
		if anchor.Url == nil {
			continue
		}
		groups := orderHrefRegex.FindStringSubmatch(anchor.Url.Path)
		if len(groups) < 2 {
			continue
		}
		if _, dup := seen[groups[1]]; dup {
			continue
		}
		seen[groups[1]] = struct{}{}
		refs = append(refs, OrderRef{
			Id:      groups[1],
			IsStore: HasStorePurchaseFlag(anchor.Url.String()) || textutil.MatchName(anchor.Name, storeLinkMatchers),
			Href:    anchor.Url.String(),
		})
	}
	return refs
}
