// Package client implements the HTTP collaborator boundaries the core
// depends on: flow persistence, run dispatch, and the durable run ledger.
// The server payload format is JSON throughout; errors surface the server's
// structured message when present, else a generic "HTTP <status>" string.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/flowdeck/flowdeck/pkg/errmap"
	"github.com/flowdeck/flowdeck/pkg/model/mrun"
	"github.com/flowdeck/flowdeck/pkg/model/mvflow"
)

// HTTPDoer lets tests substitute the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const TimeoutRequest = 60 * time.Second

type Client struct {
	baseURL string
	hc      HTTPDoer
}

type Option func(*Client)

func WithHTTPClient(hc HTTPDoer) Option {
	return func(c *Client) { c.hc = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: TimeoutRequest},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Flow persistence ---

func (c *Client) ListFlows(ctx context.Context) ([]mvflow.VisualFlow, error) {
	var out []mvflow.VisualFlow
	err := c.do(ctx, http.MethodGet, "/api/v1/flows", nil, &out)
	return out, err
}

func (c *Client) GetFlow(ctx context.Context, id string) (*mvflow.VisualFlow, error) {
	var out mvflow.VisualFlow
	if err := c.do(ctx, http.MethodGet, "/api/v1/flows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateFlow(ctx context.Context, f *mvflow.VisualFlow) (*mvflow.VisualFlow, error) {
	var out mvflow.VisualFlow
	if err := c.do(ctx, http.MethodPost, "/api/v1/flows", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FlowPatch is a partial update; nil fields are left untouched server-side.
type FlowPatch struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Graph       *mvflow.VisualFlow `json:"graph,omitempty"`
}

func (c *Client) UpdateFlow(ctx context.Context, id string, patch FlowPatch) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/flows/"+url.PathEscape(id), patch, nil)
}

func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/flows/"+url.PathEscape(id), nil, nil)
}

// --- Run dispatch (runsession.Dispatcher) ---

func (c *Client) Start(ctx context.Context, flowID string, input map[string]any) (string, error) {
	body := map[string]any{"input": input}
	var out struct {
		RunID string `json:"run_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/flows/"+url.PathEscape(flowID)+"/execute", body, &out)
	return out.RunID, err
}

func (c *Client) Pause(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(runID)+"/pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(runID)+"/resume", nil, nil)
}

func (c *Client) Cancel(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(runID)+"/cancel", nil, nil)
}

func (c *Client) AnswerPrompt(ctx context.Context, runID, text string) error {
	body := map[string]any{"text": text}
	return c.do(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(runID)+"/input", body, nil)
}

// --- Run ledger (runsession.Ledger) ---

func (c *Client) ListRuns(ctx context.Context, flowID string, limit int) ([]mrun.RunSummary, error) {
	path := fmt.Sprintf("/api/v1/flows/%s/runs?limit=%d", url.PathEscape(flowID), limit)
	var out []mrun.RunSummary
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetRunHistory(ctx context.Context, runID string) (mrun.RunHistory, error) {
	var out mrun.RunHistory
	err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID)+"/history", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errmap.MapRequestError(method, c.baseURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError extracts a message from a structured error payload when present.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return errmap.NewHTTPStatus(resp.StatusCode, payload.Error)
	}
	return errmap.NewHTTPStatus(resp.StatusCode, "")
}
