package retailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"orderexport/internal/extract"
	"orderexport/internal/order"
)

const (
	report_client_fetch_order_api      = "client.fetch-order-api"
	report_client_fetch_order_detail   = "client.fetch-order-detail"
	report_client_fetch_detailed_items = "client.fetch-detailed-items"
)

var errNoOrderInResponse = errors.New("no order in response")

// fetchOrderApi tries every configured API path and returns the first decoded order.
func (c *Client) fetchOrderApi(ctx context.Context, id string, isStore bool) (order.Order, error) {
	var lastErr error = errNoOrderInResponse
	for _, path := range c.cfg.ApiPaths {
		endpoint := c.detailPath(path, id, isStore)
		res, err := c.get(ctx, endpoint, "application/json")
		if err != nil {
			c.tel.ReportDebug(report_client_fetch_order_api, endpoint, err)
			lastErr = err
			continue
		}

		var obj any
		err = json.Unmarshal(res.Body(), &obj)
		if err != nil {
			c.tel.ReportDebug(report_client_fetch_order_api, endpoint, fmt.Errorf("unmarshal json: %w", err))
			lastErr = err
			continue
		}
		orderObj, ok := extract.FindOrderObject(obj)
		if !ok {
			lastErr = errNoOrderInResponse
			continue
		}

		// the caller already knows the order type from the list page
		if isStore {
			return extract.ParseStructuredStorePurchase(orderObj, id), nil
		}
		o := extract.ParseFromStructuredData(orderObj, id)
		if o.IsStore() {
			lastErr = fmt.Errorf("online order %s answered with a store purchase", id)
			continue
		}
		return o, nil
	}
	return order.Order{}, lastErr
}

// fetchOrderPage fetches the HTML detail page and parses it.
func (c *Client) fetchOrderPage(ctx context.Context, id string, isStore bool) (order.Order, error) {
	doc, pageUrl, err := c.getDocument(ctx, c.detailPath(c.cfg.DetailPath, id, isStore))
	if err != nil {
		return order.Order{}, err
	}
	return extract.ParseOrderPage(pageUrl.String(), doc, id), nil
}

// FetchOrderDetail fetches one order, first through the JSON endpoints then through the
// HTML detail page. It never fails: on error the returned order has the
// order.StatusErrorFetching status and Error set.
func (c *Client) FetchOrderDetail(ctx context.Context, id string, isStore bool) order.Order {
	c.tel.ReportDebug(report_client_fetch_order_detail, id, isStore)

	o, apiErr := c.fetchOrderApi(ctx, id, isStore)
	if apiErr == nil {
		return o
	}

	o, err := c.fetchOrderPage(ctx, id, isStore)
	if err == nil {
		return o
	}

	orderType := order.TypeOnline
	if isStore {
		orderType = order.TypeStore
	}
	err = errors.Join(fmt.Errorf("api: %w", apiErr), fmt.Errorf("page: %w", err))
	c.tel.ReportBroken(report_client_fetch_order_detail, err, id)
	return order.ErrorFetching(id, orderType, err)
}

// FetchDetailedItems fetches an order's detail page for its exact item prices and order
// meta. It reports false on any failure, callers should then keep what they have.
func (c *Client) FetchDetailedItems(ctx context.Context, id string, isStore bool) (*extract.DetailedItems, bool) {
	endpoint := c.detailPath(c.cfg.DetailPath, id, isStore)
	c.tel.ReportDebug(report_client_fetch_detailed_items, endpoint)

	doc, _, err := c.getDocument(ctx, endpoint)
	if err != nil {
		c.tel.ReportWarning(report_client_fetch_detailed_items, err, id)
		return nil, false
	}
	detailed, ok := extract.DetailedItemsFromDocument(doc)
	if !ok {
		c.tel.ReportWarning(report_client_fetch_detailed_items, errors.New("no structured items"), id)
		return nil, false
	}
	return detailed, true
}
