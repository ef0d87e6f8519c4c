package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/The-Promised-Neverland/navlink/internal/models"
)

// Client talks to a running agent's control server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient accepts host:port or a full http URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Send(ctx context.Context, cmdType string) (models.Response, error) {
	var resp models.Response
	err := c.post(ctx, "/api/v1/command", models.Command{Type: cmdType}, &resp)
	return resp, err
}

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.Send(ctx, models.CommandConnect)
	return err
}

func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.Send(ctx, models.CommandDisconnect)
	return err
}

func (c *Client) Status(ctx context.Context) (string, error) {
	resp, err := c.Send(ctx, models.CommandGetStatus)
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Navigate forwards a navigation event to the agent's ingest source.
func (c *Client) Navigate(ctx context.Context, ev models.NavigationEvent) error {
	return c.post(ctx, "/api/v1/navigation", ev, nil)
}

func (c *Client) Health(ctx context.Context) (models.HealthCheck, error) {
	var health models.HealthCheck
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return health, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return health, fmt.Errorf("reach agent at %s: %w", c.baseURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return health, fmt.Errorf("health check: unexpected status %s", res.Status)
	}
	envelope := models.Message{Payload: &health}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return health, fmt.Errorf("decode health check: %w", err)
	}
	return health, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach agent at %s: %w", c.baseURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%s: unexpected status %s", path, res.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
