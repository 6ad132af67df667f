// Package panel is the HTTP client a control surface uses to drive the
// coordinator.
package panel

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/coordinator"
	"github.com/dgnsrekt/tabvoice/internal/relay"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// DefaultRequery is how long Toggle waits before asking for the status again
// when the toggle response never arrived.
const DefaultRequery = time.Second

// APIError is a non-2xx answer from the coordinator.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("coordinator: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("coordinator: %d %s", e.Status, e.Title)
}

type Client struct {
	base    string
	http    *http.Client
	requery time.Duration
}

// New returns a client for the coordinator at base, e.g. http://127.0.0.1:8190.
// A nil hc uses http.DefaultClient.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc, requery: DefaultRequery}
}

// WithRequery returns a copy of c that waits d before re-querying.
func (c *Client) WithRequery(d time.Duration) *Client {
	cp := *c
	cp.requery = d
	return &cp
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if json.NewDecoder(resp.Body).Decode(&problem) == nil {
			if problem.Title != "" {
				apiErr.Title = problem.Title
			}
			apiErr.Detail = problem.Detail
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coordinator: decode %s %s: %w", method, path, err)
	}
	return nil
}

func tabPath(tabID settings.TabID, suffix string) string {
	return "/api/v1/tabs/" + tabID.String() + suffix
}

func (c *Client) Status(ctx context.Context, tabID settings.TabID) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, tabPath(tabID, "/status"), nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) Settings(ctx context.Context, tabID settings.TabID) (settings.EnhancementConfig, error) {
	var out settings.EnhancementConfig
	err := c.do(ctx, http.MethodGet, tabPath(tabID, "/settings"), nil, &out)
	return out, err
}

func (c *Client) UpdateSettings(ctx context.Context, tabID settings.TabID, p settings.Partial) (settings.EnhancementConfig, error) {
	var out settings.EnhancementConfig
	err := c.do(ctx, http.MethodPut, tabPath(tabID, "/settings"), p, &out)
	return out, err
}

// Toggle flips capture for a tab and returns the new status. If the request
// went out but no answer came back, the status is re-queried after the
// requery delay instead of failing.
func (c *Client) Toggle(ctx context.Context, tabID settings.TabID) (string, error) {
	var out struct {
		NewStatus string `json:"new_status"`
	}
	err := c.do(ctx, http.MethodPost, tabPath(tabID, "/toggle"), nil, &out)
	if err == nil {
		return out.NewStatus, nil
	}
	if _, ok := err.(*APIError); ok || ctx.Err() != nil {
		return "", err
	}

	slog.Warn("panel: toggle response lost, re-querying status", "tab_id", tabID, "error", err)
	select {
	case <-time.After(c.requery):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return c.Status(ctx, tabID)
}

// Close reports the tab closed so the coordinator forgets it.
func (c *Client) Close(ctx context.Context, tabID settings.TabID) error {
	return c.do(ctx, http.MethodDelete, tabPath(tabID, ""), nil, nil)
}

func (c *Client) Tabs(ctx context.Context) ([]coordinator.TabStatus, error) {
	var out struct {
		Tabs []coordinator.TabStatus `json:"tabs"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/tabs", nil, &out)
	return out.Tabs, err
}

// Watch streams status events until ctx ends or the stream breaks. An empty
// tabs slice watches every tab.
func (c *Client) Watch(ctx context.Context, tabs []settings.TabID, fn func(relay.Event)) error {
	path := "/api/v1/events"
	if len(tabs) > 0 {
		ids := make([]string, len(tabs))
		for i, id := range tabs {
			ids[i] = id.String()
		}
		path += "?tabs=" + strings.Join(ids, ",")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt relay.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			slog.Debug("panel: bad event", "error", err)
			continue
		}
		fn(evt)
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}
