package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mselser95/marketview/pkg/types"
)

// PlaceOrder places a limit order.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	var order types.Order

	err := c.do(ctx, http.MethodPost, "trades_order", "/trades/order", req, &order)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	return &order, nil
}

// ExecuteTrade executes a market trade.
func (c *Client) ExecuteTrade(ctx context.Context, req types.ExecuteRequest) (*types.Trade, error) {
	var trade types.Trade

	err := c.do(ctx, http.MethodPost, "trades_execute", "/trades/execute", req, &trade)
	if err != nil {
		return nil, fmt.Errorf("execute trade: %w", err)
	}

	return &trade, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.do(ctx, http.MethodDelete, "trades_cancel", "/trades/order/"+url.PathEscape(orderID), nil, nil)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	return nil
}

// Orderbook returns the aggregated book for a market.
func (c *Client) Orderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	var book types.Orderbook

	err := c.do(ctx, http.MethodGet, "trades_orderbook", "/trades/orderbook/"+url.PathEscape(marketID), nil, &book)
	if err != nil {
		return nil, fmt.Errorf("get orderbook: %w", err)
	}

	return &book, nil
}
