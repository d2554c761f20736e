package export

import (
	"context"
	"net/url"
	"orderexport/internal/extract"
	"orderexport/internal/order"
	"orderexport/internal/scrapers/retailer"

	"github.com/PuerkitoBio/goquery"
)

// Navigator is the order list as the orchestrator walks it.
type Navigator interface {
	// Current returns the page the list is on.
	Current() (*goquery.Document, *url.URL)
	// NextPage moves to the next page, it reports false when there is none.
	NextPage(ctx context.Context) (bool, error)
}

// Source is where orders come from.
//
// note: fault injection point
type Source interface {
	OpenOrderList(ctx context.Context) (Navigator, error)
	FetchOrderDetail(ctx context.Context, id string, isStore bool) order.Order
	FetchDetailedItems(ctx context.Context, id string, isStore bool) (*extract.DetailedItems, bool)
}

// RetailerSource is the Source backed by the live website.
type RetailerSource struct {
	Client *retailer.Client
}

func (s RetailerSource) OpenOrderList(ctx context.Context) (Navigator, error) {
	list, err := s.Client.OpenOrderList(ctx)
	if err != nil {
		return nil, err
	}
	return retailerNavigator{list: list}, nil
}

func (s RetailerSource) FetchOrderDetail(ctx context.Context, id string, isStore bool) order.Order {
	return s.Client.FetchOrderDetail(ctx, id, isStore)
}

func (s RetailerSource) FetchDetailedItems(ctx context.Context, id string, isStore bool) (*extract.DetailedItems, bool) {
	return s.Client.FetchDetailedItems(ctx, id, isStore)
}

type retailerNavigator struct {
	list *retailer.OrderList
}

func (n retailerNavigator) Current() (*goquery.Document, *url.URL) {
	page := n.list.Current()
	return page.Doc, page.Url
}

func (n retailerNavigator) NextPage(ctx context.Context) (bool, error) {
	return n.list.NextPage(ctx)
}
