package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mselser95/marketview/pkg/types"
)

// Verify exchanges a provider access token for the backend's view of the
// user and their wallets.
func (c *Client) Verify(ctx context.Context, accessToken string) (*types.VerifyResponse, error) {
	var resp types.VerifyResponse

	err := c.do(ctx, http.MethodPost, "auth_verify", "/auth/verify",
		types.VerifyRequest{AccessToken: accessToken}, &resp)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}

	return &resp, nil
}

// SyncUser creates or updates the backend user and returns a bearer token.
func (c *Client) SyncUser(ctx context.Context, req types.SyncRequest) (*types.SyncResponse, error) {
	var resp types.SyncResponse

	err := c.do(ctx, http.MethodPost, "users_sync", "/users/sync", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}

	if resp.Token == "" {
		return nil, &types.APIError{Status: http.StatusOK, Message: "sync response did not include a token"}
	}

	return &resp, nil
}

// CreateDemoUsers provisions count demo accounts.
func (c *Client) CreateDemoUsers(ctx context.Context, count int) ([]types.DemoUser, error) {
	var users []types.DemoUser

	err := c.do(ctx, http.MethodPost, "users_demo", "/users/demo", types.DemoUsersRequest{Count: count}, &users)
	if err != nil {
		return nil, fmt.Errorf("create demo users: %w", err)
	}

	return users, nil
}

// DemoToken issues a bearer token for a demo user.
func (c *Client) DemoToken(ctx context.Context, userID string) (string, error) {
	var resp types.TokenResponse

	err := c.do(ctx, http.MethodPost, "users_demo_token", "/users/demo-token/"+url.PathEscape(userID), nil, &resp)
	if err != nil {
		return "", fmt.Errorf("get demo token: %w", err)
	}

	if resp.Token == "" {
		return "", &types.APIError{Status: http.StatusOK, Message: "demo token response did not include a token"}
	}

	return resp.Token, nil
}

// CurrentUser returns the user the bearer token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*types.APIUser, error) {
	var user types.APIUser

	err := c.do(ctx, http.MethodGet, "users_me", "/users/me", nil, &user)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	return &user, nil
}

// Positions returns the current user's positions.
func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	var positions []types.Position

	err := c.do(ctx, http.MethodGet, "users_positions", "/users/me/positions", nil, &positions)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	return positions, nil
}

// Orders returns the current user's orders, optionally filtered by status.
func (c *Client) Orders(ctx context.Context, status string) ([]types.Order, error) {
	path := "/users/me/orders"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}

	var orders []types.Order

	err := c.do(ctx, http.MethodGet, "users_orders", path, nil, &orders)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	return orders, nil
}

// Trades returns one page of the current user's trades.
func (c *Client) Trades(ctx context.Context, cursor string) (*types.TradesPage, error) {
	path := "/users/me/trades"
	if cursor != "" {
		path += "?" + url.Values{"cursor": {cursor}}.Encode()
	}

	var page types.TradesPage

	err := c.do(ctx, http.MethodGet, "users_trades", path, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	return &page, nil
}
