package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/config"
)

// Client is a row-oriented HTTP client for the remote backend. Every domain
// collection maps to a table under {base}/rest/v1/{table}; rows are JSON
// documents filtered by equality on a column.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewClient builds a client from config. With no remote URL configured the
// client is still usable but reports Configured() == false and all calls
// fail fast; callers gate on Configured().
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		baseURL: cfg.RemoteURL,
		apiKey:  cfg.RemoteKey,
		logger:  logger,
	}
}

// Configured reports whether a remote backend is set up. When false the
// sync core runs local-only.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Insert creates a row.
func (c *Client) Insert(ctx context.Context, table string, row json.RawMessage) error {
	_, err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), row)
	return err
}

// Update patches the row whose id column matches id.
func (c *Client) Update(ctx context.Context, table, id string, row json.RawMessage) error {
	q := url.Values{"id": {"eq." + id}}
	_, err := c.do(ctx, http.MethodPatch, c.tableURL(table, q), row)
	return err
}

// Delete removes the row whose id column matches id.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	q := url.Values{"id": {"eq." + id}}
	_, err := c.do(ctx, http.MethodDelete, c.tableURL(table, q), nil)
	return err
}

// Select fetches rows where field equals value. A non-zero limit bounds the
// result; desc orders by created_at descending (used for the chat window).
func (c *Client) Select(ctx context.Context, table, field, value string, limit int, desc bool) ([]json.RawMessage, error) {
	q := url.Values{field: {"eq." + value}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if desc {
		q.Set("order", "created_at.desc")
	}
	body, err := c.do(ctx, http.MethodGet, c.tableURL(table, q), nil)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

func (c *Client) tableURL(table string, q url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body json.RawMessage) ([]byte, error) {
	if !c.Configured() {
		return nil, &Error{Message: "remote backend not configured"}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: unreachable host, timeout, cancelled
		// context. All transient.
		return nil, &Error{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, classify(resp.StatusCode, string(data))
	}
	return data, nil
}
