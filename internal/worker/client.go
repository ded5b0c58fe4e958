package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petervdpas/airwaves/internal/session"
)

// Client drives a worker process through its Server. It satisfies
// session.Worker, so the session controller cannot tell it from an
// in-process Worker.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// BridgeURL is the websocket address of the worker's message bridge.
func (c *Client) BridgeURL() string {
	u := c.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/mq"
}

func (c *Client) Start(ctx context.Context, p session.StartParams) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.post(ctx, "/start", body)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", nil)
}

// Status reports not running when the worker process cannot be reached.
func (c *Client) Status(ctx context.Context) session.Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status", nil)
	if err != nil {
		return session.Status{}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debugf("WORKER: status unreachable: %v", err)
		return session.Status{}
	}
	defer resp.Body.Close()

	var st session.Status
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&st) != nil {
		return session.Status{}
	}
	return st
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("worker %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("worker %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
