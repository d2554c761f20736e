package retailer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"orderexport/internal/extract"
	"orderexport/lib/chrono"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_open_order_list = "client.open-order-list"
	report_client_next_page       = "client.next-page"
)

// Page is one fetched page of the order list.
type Page struct {
	Url    *url.URL
	Doc    *goquery.Document
	Number int
}

// hasOrders reports whether the page shows any order, either as a card or as a link.
func (p *Page) hasOrders() bool {
	return len(extract.CollectVisibleOrders(p.Doc)) > 0 ||
		len(extract.OrderLinks(p.Doc, p.Url)) > 0
}

// OrderList walks the paginated order list.
type OrderList struct {
	client  *Client
	current *Page
}

// OpenOrderList fetches the first page of the order list.
func (c *Client) OpenOrderList(ctx context.Context) (*OrderList, error) {
	endpoint := c.cfg.ListPath
	if endpoint == "" {
		endpoint = "/orders"
	}
	c.tel.ReportDebug(report_client_open_order_list, endpoint)

	doc, pageUrl, err := c.getDocument(ctx, endpoint)
	if err != nil {
		c.tel.ReportBroken(report_client_open_order_list, err, endpoint)
		return nil, err
	}
	list := &OrderList{
		client:  c,
		current: &Page{Url: pageUrl, Doc: doc, Number: 1},
	}
	if !list.current.hasOrders() && list.nextControl() == nil {
		err = fmt.Errorf("%w: no orders on %s", ErrNotOrderPage, pageUrl)
		c.tel.ReportBroken(report_client_open_order_list, err, endpoint)
		return nil, err
	}
	return list, nil
}

// Current is the page the list is on, never nil.
func (l *OrderList) Current() *Page {
	return l.current
}

var nextControlSelectors = []string{
	`[data-testid="next-page"]`,
	`[data-automation-id="next-pages-button"]`,
	`a[rel="next"]`,
	`[aria-label]`,
	`a, button`,
}

func isNextControl(s *goquery.Selection) bool {
	label := strings.ToLower(strings.TrimSpace(s.AttrOr("aria-label", "")))
	if strings.Contains(label, "next page") || label == "next" {
		return true
	}
	text := strings.ToLower(strings.TrimSpace(s.Text()))
	return text == "next" || text == "next page" || text == "show more orders"
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if strings.EqualFold(s.AttrOr("aria-disabled", ""), "true") {
		return true
	}
	return strings.Contains(strings.ToLower(s.AttrOr("class", "")), "disabled")
}

// nextControl finds the "next page" control of the current page.
func (l *OrderList) nextControl() *goquery.Selection {
	for i, selector := range nextControlSelectors {
		var found *goquery.Selection
		l.current.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			// the first three selectors identify the control on their own
			if i >= 3 && !isNextControl(s) {
				return true
			}
			found = s
			return false
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// HasNextPage reports whether the current page has a present and enabled next control.
func (l *OrderList) HasNextPage() bool {
	control := l.nextControl()
	return control != nil && !isDisabled(control)
}

// nextUrl is where the next control leads. Buttons without a link fall back to the
// page query parameter of the current URL.
func (l *OrderList) nextUrl(control *goquery.Selection) *url.URL {
	href := strings.TrimSpace(control.AttrOr("href", control.AttrOr("data-href", "")))
	if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
		ref, err := url.Parse(href)
		if err == nil {
			return l.current.Url.ResolveReference(ref)
		}
	}
	next := *l.current.Url
	query := next.Query()
	query.Set("page", strconv.Itoa(l.current.Number+1))
	next.RawQuery = query.Encode()
	return &next
}

// NextPage follows the next control and waits until the new page shows orders, bounded
// by the configured settle timeout. It reports false when there is no enabled next page.
func (l *OrderList) NextPage(ctx context.Context) (bool, error) {
	if !l.HasNextPage() {
		return false, nil
	}
	control := l.nextControl()
	target := l.nextUrl(control)
	endpoint := target.String()
	c := l.client
	c.tel.ReportDebug(report_client_next_page, endpoint)

	var next *Page
	err := chrono.WaitFor(ctx, c.clock, c.cfg.PageSettleTimeout, c.cfg.PageSettleInterval, func(ctx context.Context) (bool, error) {
		doc, pageUrl, err := c.getDocument(ctx, endpoint)
		if err != nil {
			return false, err
		}
		next = &Page{Url: pageUrl, Doc: doc, Number: l.current.Number + 1}
		return next.hasOrders(), nil
	})
	if errors.Is(err, chrono.ErrWaitTimeout) && next != nil {
		// the page loaded but never showed orders, collection will find nothing on it
		c.tel.ReportWarning(report_client_next_page, fmt.Errorf("page did not settle: %w", err), endpoint)
		err = nil
	}
	if err != nil {
		c.tel.ReportBroken(report_client_next_page, err, endpoint)
		return false, err
	}

	l.current = next
	return true, nil
}
