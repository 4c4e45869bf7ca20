// Package api talks to the REST side of the backend: the initial canvas
// snapshot and pixel writes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-essam23/go-place/pkg/grid"
)

const (
	canvasPath  = "/api/canvas"
	pixelPath   = "/api/pixel"
	maxBodySize = 32 << 20
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func NewClient(logger *slog.Logger, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got '%s'", opts.BaseURL)
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		logger: logger.With(slog.String("component", "api_client")),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// FetchCanvas returns the full snapshot. Cells the server omits are white.
func (c *Client) FetchCanvas(ctx context.Context) ([]grid.Cell, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(canvasPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch canvas: %w", err)
	}
	var cells []grid.Cell
	if err := json.Unmarshal(body, &cells); err != nil {
		return nil, fmt.Errorf("decode canvas: %w", err)
	}
	c.logger.Debug("Fetched canvas snapshot", slog.Int("cells", len(cells)))
	return cells, nil
}

// PlacePixel writes one cell. A nil cell with a nil error means the server
// accepted the request but changed nothing.
func (c *Client) PlacePixel(ctx context.Context, cell grid.Cell) (*grid.Cell, error) {
	payload, err := json.Marshal(cell)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pixelPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("place pixel: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	var out grid.Cell
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode pixel: %w", err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
