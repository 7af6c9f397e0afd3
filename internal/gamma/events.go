package gamma

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetEvent fetches current event details by slug or id.
func (c *Client) GetEvent(ctx context.Context, slug string) (*APIEvent, error) {
	var event APIEvent
	if err := c.getGamma(ctx, "/events/"+url.PathEscape(slug), nil, &event); err != nil {
		return nil, fmt.Errorf("get event %s: %w", slug, err)
	}
	return &event, nil
}

// GetTrades fetches recent trades for an outcome token, newest first.
func (c *Client) GetTrades(ctx context.Context, tokenID string, limit int) ([]APITrade, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp TradesResponse
	if err := c.getClob(ctx, "/trades", query, &resp); err != nil {
		return nil, fmt.Errorf("get trades %s: %w", tokenID, err)
	}

	return resp.Trades, nil
}
