package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// SessionData is the data part of a session response.
type SessionData struct {
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
	IsNew           bool   `json:"isNew,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated,omitempty"`
}

// SessionResponse is returned by /session/check and /session/init.
type SessionResponse struct {
	Success bool        `json:"success"`
	Data    SessionData `json:"data"`
	Message string      `json:"message,omitempty"`
}

// CheckSession asks the backend whether the current session is valid.
func (c *Client) CheckSession(ctx context.Context) (*SessionResponse, error) {
	return c.session(ctx, "session.check", "/session/check")
}

// InitSession creates a new anonymous session.
func (c *Client) InitSession(ctx context.Context) (*SessionResponse, error) {
	return c.session(ctx, "session.init", "/session/init")
}

func (c *Client) session(ctx context.Context, op, path string) (*SessionResponse, error) {
	resp, err := c.doOK(ctx, op, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var out SessionResponse
	if err := resp.Decode(&out); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &out, nil
}

// ListShops returns the raw body of GET /shops.
func (c *Client) ListShops(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.doOK(ctx, "shops.list", http.MethodGet, "/shops", nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FlowerQuery holds the listing parameters in wire form.
type FlowerQuery struct {
	SortBy    string // "Price" or "DateAdded"
	SortOrder string // "ASC" or "DESC"
	Page      int
	PageSize  int
}

// ListFlowers returns the raw body of GET /flowers/shop/{shopID}. The body
// is either a bare list or an {items, totalPages} envelope.
func (c *Client) ListFlowers(ctx context.Context, shopID int, q FlowerQuery) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("sortBy", q.SortBy)
	query.Set("sortOrder", q.SortOrder)
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("pageSize", strconv.Itoa(q.PageSize))

	resp, err := c.doOK(ctx, "flowers.list", http.MethodGet, "/flowers/shop/"+strconv.Itoa(shopID), query, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// CreateOrder posts an order. The whole response is returned because the
// order id may only be present in the Location header.
func (c *Client) CreateOrder(ctx context.Context, payload interface{}) (*Response, error) {
	return c.doOK(ctx, "orders.create", http.MethodPost, "/orders/", nil, payload)
}

// GetOrder returns the raw body of GET /orders/{id}.
func (c *Client) GetOrder(ctx context.Context, id string) (json.RawMessage, error) {
	resp, err := c.doOK(ctx, "orders.get", http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AddFavorite marks a flower as a favorite of the session user.
func (c *Client) AddFavorite(ctx context.Context, flowerID int) error {
	_, err := c.doOK(ctx, "favorites.add", http.MethodPost, "/favorites/"+strconv.Itoa(flowerID), nil, nil)
	return err
}

// RemoveFavorite removes a favorite.
func (c *Client) RemoveFavorite(ctx context.Context, flowerID int) error {
	_, err := c.doOK(ctx, "favorites.remove", http.MethodDelete, "/favorites/"+strconv.Itoa(flowerID), nil, nil)
	return err
}
