// Package api talks to the engine's HTTP surface: the pull fetch used for
// hydration and the four control commands.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/logging"
)

// Command endpoints, relative to the engine base URL.
const (
	PathPauseFake = "/api/engine/pause-fake"
	PathForceReal = "/api/engine/force-real"
	PathResetLock = "/api/engine/reset-lock"
	PathAssistant = "/api/assistant"
)

const maxBodyBytes = 1 << 20

// Ack is the engine's reply to a command.
type Ack struct {
	OK     bool `json:"ok"`
	Status int  `json:"-"`
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	StatePath string
	Timeout   time.Duration
	Logger    *slog.Logger
	HTTP      *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	base      *url.URL
	statePath string
	http      *http.Client
	logger    *slog.Logger
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse engine url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("engine url %q must use http or https", opts.BaseURL)
	}
	if opts.StatePath == "" {
		opts.StatePath = "/api/engine/state"
	}

	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		base:      base,
		statePath: opts.StatePath,
		http:      httpClient,
		logger:    logging.OrDiscard(opts.Logger),
	}, nil
}

// BaseURL returns the engine base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// FetchState performs one pull of the full engine state.
func (c *Client) FetchState(ctx context.Context) (*engine.Snapshot, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.statePath, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fetch state: HTTP %d", status)
	}
	return engine.DecodeJSON(body)
}

// SetPauseFake asks the engine to pause or resume the fake feed.
func (c *Client) SetPauseFake(ctx context.Context, enabled bool) (Ack, error) {
	return c.command(ctx, PathPauseFake, map[string]bool{"enabled": enabled})
}

// SetForceReal asks the engine to force or release REAL mode.
func (c *Client) SetForceReal(ctx context.Context, enabled bool) (Ack, error) {
	return c.command(ctx, PathForceReal, map[string]bool{"enabled": enabled})
}

// ResetLock clears the engine's fake lock.
func (c *Client) ResetLock(ctx context.Context) (Ack, error) {
	return c.command(ctx, PathResetLock, struct{}{})
}

// SetAssistant enables or disables the voice macro assistant.
func (c *Client) SetAssistant(ctx context.Context, enabled bool) (Ack, error) {
	return c.command(ctx, PathAssistant, map[string]bool{"enabled": enabled})
}

// command posts payload to path. A non-2xx reply is an unconfirmed Ack, not
// an error; errors are reserved for transport and decode failures.
func (c *Client) command(ctx context.Context, path string, payload any) (Ack, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, fmt.Errorf("encode %s: %w", path, err)
	}

	body, status, err := c.do(ctx, http.MethodPost, path, raw)
	if err != nil {
		return Ack{}, err
	}
	if status < 200 || status >= 300 {
		return Ack{OK: false, Status: status}, nil
	}

	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return Ack{Status: status}, fmt.Errorf("decode %s reply: %w", path, err)
	}
	ack.Status = status
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	target := c.base.JoinPath(path)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// trace hooks fire on transport goroutines
	var wrote, firstByte atomic.Int64
	trace := &httptrace.ClientTrace{
		WroteRequest:         func(httptrace.WroteRequestInfo) { wrote.Store(time.Now().UnixNano()) },
		GotFirstResponseByte: func() { firstByte.Store(time.Now().UnixNano()) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	attrs := []any{
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"total_ms", time.Since(start).Milliseconds(),
	}
	if w, f := wrote.Load(), firstByte.Load(); w > 0 && f > w {
		attrs = append(attrs, "ttfb_ms", time.Duration(f-w).Milliseconds())
	}
	c.logger.Debug("engine request", attrs...)

	return body, resp.StatusCode, nil
}

// WebSocketURL derives the push endpoint from the engine base URL.
func WebSocketURL(base *url.URL, path string) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath(path).String()
}
