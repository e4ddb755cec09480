package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/fulbito/internal/domain/types"
)

// idempotencyHeader matches the header the API reads on POST /matches.
const idempotencyHeader = "Idempotency-Key"

// Client is a thin JSON client for the fulbito API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// CreatePlayer registers a player and returns it with its stored ID.
func (c *Client) CreatePlayer(ctx context.Context, name string, rating *float64) (types.Player, error) {
	var out types.Player
	status, err := c.do(ctx, http.MethodPost, "/players", nil, types.CreatePlayerRequest{Name: name, Rating: rating}, &out)
	if err != nil {
		return types.Player{}, err
	}
	if status != http.StatusCreated {
		return types.Player{}, fmt.Errorf("%w: create player status %d", ErrUnexpected, status)
	}
	return out, nil
}

// SubmitBalance queues a balance job. The status code is returned so the
// caller can tell backpressure from other failures.
func (c *Client) SubmitBalance(ctx context.Context, req types.BalanceRequest) (types.JobResponse, int, error) {
	var out types.JobResponse
	status, err := c.do(ctx, http.MethodPost, "/balance?async=true", nil, req, &out)
	return out, status, err
}

// Job fetches a job snapshot.
func (c *Client) Job(ctx context.Context, id string) (types.JobResponse, error) {
	var out types.JobResponse
	status, err := c.do(ctx, http.MethodGet, "/balance/jobs/"+id, nil, nil, &out)
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		return out, fmt.Errorf("%w: job %s status %d", ErrUnexpected, id, status)
	}
	return out, nil
}

// SaveMatch posts a match under an idempotency key.
func (c *Client) SaveMatch(ctx context.Context, key string, req types.SaveMatchRequest) (types.SaveMatchResponse, int, error) {
	var out types.SaveMatchResponse
	status, err := c.do(ctx, http.MethodPost, "/matches", map[string]string{idempotencyHeader: key}, req, &out)
	return out, status, err
}

// do performs a JSON request. Non-2xx bodies are not decoded into out.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusMultipleChoices && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
