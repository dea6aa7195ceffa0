package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"simguard/client/internal/config"
	"simguard/client/internal/ids"
	"simguard/client/internal/session"
)

// Client is the one signed HTTP channel to the simguard API. Every request
// carries correlation headers and, while a session is live, the bearer
// credential. A 401 on any response clears the session; the hook installed
// with OnUnauthorized fires exactly once per cleared session, no matter how
// many in-flight requests observe the rejection.
type Client struct {
	base     string
	http     *http.Client
	store    *session.Store
	clientID string
	log      zerolog.Logger

	onUnauthorized func()
}

func NewClient(cfg config.APIConfig, store *session.Store, clientID string, logger zerolog.Logger) *Client {
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		store:    store,
		clientID: clientID,
		log:      logger,
	}
}

// OnUnauthorized installs the forced-logout hook. Install before issuing
// requests; it is not safe to swap concurrently with them.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	op := method + " " + path

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", ids.RequestID())
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}
	if c.store != nil {
		if token, ok := c.store.BearerToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateSession(op)
		return decodeError(resp.StatusCode, data)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// invalidateSession is the global 401 handler. Store.Clear is idempotent
// and reports whether this call flipped the session to cleared, which
// gates the hook to a single firing.
func (c *Client) invalidateSession(op string) {
	if c.store == nil {
		return
	}
	if c.store.Clear() {
		c.log.Warn().Str("op", op).Msg("session rejected by server, cleared")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("POST %s: encode payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, strings.NewReader(string(data)), "application/json", out)
}

func (c *Client) putJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("PUT %s: encode payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPut, path, strings.NewReader(string(data)), "application/json", out)
}
