// Package engine provides the public Go SDK for the chitalishte query
// engine API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the public SDK client for the query engine API.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// NewClient creates a new query engine client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// AskRequest is a chat question.
type AskRequest struct {
	Question string `json:"question"`
}

// SQLOutcome reports the SQL path of an answer.
type SQLOutcome struct {
	Generated     string                   `json:"generated"`
	Rewritten     string                   `json:"rewritten,omitempty"`
	AppliedPasses []string                 `json:"appliedPasses,omitempty"`
	Columns       []string                 `json:"columns,omitempty"`
	Rows          []map[string]interface{} `json:"rows,omitempty"`
	Truncated     bool                     `json:"truncated,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

// Passage is one retrieved piece of context.
type Passage struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// AskResponse is the full answer for a question.
type AskResponse struct {
	RequestID  string      `json:"requestId"`
	Intent     string      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
	SQL        *SQLOutcome `json:"sql,omitempty"`
	Passages   []Passage   `json:"passages,omitempty"`
	LatencyMs  int64       `json:"latencyMs"`
	Cached     bool        `json:"cached"`
}

// Ask submits a question to the answer pipeline.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.post(ctx, "/api/v1/chat/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClassifyRequest is an intent classification request.
type ClassifyRequest struct {
	Query string `json:"query"`
}

// ClassifyResponse is the routing decision for a query.
type ClassifyResponse struct {
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	MatchedSignals []string `json:"matchedSignals,omitempty"`
	Explanation    string   `json:"explanation"`
}

// Classify runs the intent router without executing anything.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	var resp ClassifyResponse
	if err := c.post(ctx, "/api/v1/routing/classify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckSQLRequest is a dry-run SQL guard request.
type CheckSQLRequest struct {
	SQL string `json:"sql"`
}

// CheckSQLResponse is the validator and rewriter verdict.
type CheckSQLResponse struct {
	IsValid        bool     `json:"isValid"`
	Category       string   `json:"category"`
	Message        string   `json:"message,omitempty"`
	InvalidColumns []string `json:"invalidColumns,omitempty"`
	Rewritten      string   `json:"rewritten,omitempty"`
	AppliedPasses  []string `json:"appliedPasses,omitempty"`
}

// CheckSQL validates and rewrites a query without executing it.
func (c *Client) CheckSQL(ctx context.Context, req CheckSQLRequest) (*CheckSQLResponse, error) {
	var resp CheckSQLResponse
	if err := c.post(ctx, "/api/v1/sql/check", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// apiError is the server's error envelope.
type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
