package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kiwari-pos/terminal/internal/snapshot"
)

// OrderClient reads order state over HTTP. It is both the archive source and
// the live source of a snapshot.Reconstructor.
type OrderClient struct {
	*Client
}

var (
	_ snapshot.ArchiveSource = (*OrderClient)(nil)
	_ snapshot.LiveSource    = (*OrderClient)(nil)
)

// NewOrderClient creates an OrderClient sharing c.
func NewOrderClient(c *Client) *OrderClient {
	return &OrderClient{Client: c}
}

// FetchArchived returns the archived record of orderID.
func (c *OrderClient) FetchArchived(ctx context.Context, orderID string) (*snapshot.ArchivedOrder, error) {
	var rec snapshot.ArchivedOrder
	path := "/api/archive/orders/" + url.PathEscape(orderID)
	if err := c.getJSON(ctx, path, &rec, snapshot.ErrNotFound); err != nil {
		return nil, fmt.Errorf("archived order %s: %w", orderID, err)
	}
	return &rec, nil
}

// FetchLive returns the event tail of orderID with the backend's snapshot.
func (c *OrderClient) FetchLive(ctx context.Context, orderID string) (*snapshot.LiveOrder, error) {
	var live snapshot.LiveOrder
	path := "/api/orders/" + url.PathEscape(orderID) + "/events"
	if err := c.getJSON(ctx, path, &live, snapshot.ErrNotFound); err != nil {
		return nil, fmt.Errorf("live order %s: %w", orderID, err)
	}
	return &live, nil
}
