package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	http *http.Client
	// stream has no overall timeout; the events request lives as long as ctx.
	stream *http.Client
}

type Info struct {
	Name            string `json:"Name"`
	ServerVersion   string `json:"ServerVersion"`
	OperatingSystem string `json:"OperatingSystem"`
}

// EventFilters narrows the /events subscription server side.
type EventFilters struct {
	Types   []string
	Actions []string
}

func (f EventFilters) encode() (string, error) {
	m := map[string][]string{}
	if len(f.Types) > 0 {
		m["type"] = f.Types
	}
	if len(f.Actions) > 0 {
		m["event"] = f.Actions
	}
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 3 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http:   &http.Client{Transport: transport, Timeout: 30 * time.Second},
		stream: &http.Client{Transport: transport},
	}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/_ping")
	return err
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	b, err := c.do(ctx, http.MethodGet, "/info")
	if err != nil {
		return Info{}, err
	}
	var out Info
	if err := json.Unmarshal(b, &out); err != nil {
		return Info{}, err
	}
	return out, nil
}

// Events subscribes to the daemon's event stream. The stream ends when ctx is
// cancelled or the daemon closes the connection.
func (c *Client) Events(ctx context.Context, filters EventFilters) (*EventStream, error) {
	q := url.Values{}
	encoded, err := filters.encode()
	if err != nil {
		return nil, fmt.Errorf("encode event filters: %w", err)
	}
	if encoded != "" {
		q.Set("filters", encoded)
	}
	u := "http://unix/events"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		defer res.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, fmt.Errorf("events status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}
	return NewEventStream(res.Body), nil
}

func (c *Client) do(ctx context.Context, method, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+p, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = res.Status
		}
		return nil, fmt.Errorf("docker api %s %s failed: %s", method, p, msg)
	}
	return b, nil
}
