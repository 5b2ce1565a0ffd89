package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultSerperBaseURL = "https://google.serper.dev"
	serperMaxBody        = 2 << 20
)

// SerperClient posts search queries to Serper's Google search endpoints.
type SerperClient struct {
	APIKey     string
	BaseURL    string // defaults to the public Serper endpoint
	Region     string // "gl" parameter, e.g. "de"
	HTTPClient *http.Client
}

func (c *SerperClient) post(ctx context.Context, path, query string) (map[string]any, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultSerperBaseURL
	}
	payload := map[string]any{"q": query}
	if c.Region != "" {
		payload["gl"] = c.Region
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()
	lr := io.LimitedReader{R: resp.Body, N: serperMaxBody}
	b, _ := io.ReadAll(&lr)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search API status %d: %.300s", resp.StatusCode, string(b))
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON from search API: %.300s", string(b))
	}
	return out, nil
}

// section extracts a named result list from a Serper response and renders it
// as compact JSON for the model.
func section(resp map[string]any, key, emptyMessage string) (string, error) {
	items, _ := resp[key].([]any)
	if len(items) == 0 {
		b, _ := json.Marshal(map[string]any{key: []any{}, "message": emptyMessage})
		return string(b), nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(b), nil
}
