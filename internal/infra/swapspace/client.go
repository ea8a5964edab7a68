package swapspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalifa4y/swppr/internal/infra"
)

// ErrNotFound is returned when the upstream does not know the requested id.
var ErrNotFound = errors.New("swapspace: exchange not found")

// Client talks to the SwapSpace aggregator REST API.
// Read calls retry with exponential backoff; the order-creation write path
// is attempted exactly once.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	readRetries int
}

// NewClient creates a SwapSpace client from config.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.API.SwapSpace.BaseURL, "/"),
		apiKey:  cfg.API.SwapSpace.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.API.SwapSpace.TimeoutSec) * time.Second,
		},
		readRetries: 2,
	}
}

// Currencies fetches the supported coin catalog.
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	body, err := c.getWithRetry(ctx, c.baseURL+"/currencies")
	if err != nil {
		return nil, err
	}

	var list []Currency
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("swapspace: failed to parse currencies: %w", err)
	}
	return list, nil
}

// Amounts fetches quotes for a directed pair at a given amount.
func (c *Client) Amounts(ctx context.Context, from, to string, amount float64) ([]AmountOffer, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("from", strings.ToLower(from))
	q.Set("to", strings.ToLower(to))

	body, err := c.getWithRetry(ctx, c.baseURL+"/amounts?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp amountsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("swapspace: failed to parse amounts: %w", err)
	}
	return resp.List, nil
}

// CreateExchange places an order. No retry: a timed-out create may still
// have been accepted upstream, so replays risk duplicate orders.
func (c *Client) CreateExchange(ctx context.Context, from, to string, amount float64, address, refundAddress string) (*ExchangeResponse, error) {
	payload, err := json.Marshal(exchangeRequest{
		From:          strings.ToLower(from),
		To:            strings.ToLower(to),
		Amount:        amount,
		Address:       address,
		RefundAddress: refundAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("swapspace: failed to marshal exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp ExchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("swapspace: failed to parse exchange response: %w", err)
	}
	return &resp, nil
}

// ExchangeStatus fetches the current status of an order.
func (c *Client) ExchangeStatus(ctx context.Context, id string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/exchange/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("swapspace: failed to parse status response: %w", err)
	}
	return &resp, nil
}

// getWithRetry performs a GET with backoff between attempts.
func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.readRetries; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			slog.Info("Retrying SwapSpace request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		body, err := c.do(req)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err // retrying will not make it appear
		}
		lastErr = err
		slog.Warn("SwapSpace request attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	return nil, lastErr
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("swapspace: unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
}
