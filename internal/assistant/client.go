// Package assistant talks to the hosted assistant provider: it manages
// provider threads and runs, and drives one conversation turn per user
// at a time.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a thin HTTP client for the provider's thread/run surface.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	assistantID string
}

// NewClient creates a provider client. baseURL defaults to the public
// endpoint, timeout to 60s.
func NewClient(apiKey, baseURL, assistantID string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     baseURL,
		assistantID: assistantID,
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// CreateThread creates an empty provider thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]any{}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateMessage appends a user message to the thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, text string) error {
	body := map[string]any{
		"role":    "user",
		"content": text,
	}
	return c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
}

// CreateRun starts an asynchronous run of the configured assistant over
// the thread and returns the run id.
func (c *Client) CreateRun(ctx context.Context, threadID string) (string, error) {
	body := map[string]any{
		"assistant_id": c.assistantID,
	}
	var resp runResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetRunStatus retrieves the current status of a run.
func (c *Client) GetRunStatus(ctx context.Context, threadID, runID string) (string, error) {
	var resp runResponse
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// LatestMessageText returns the newest message's first text value, or
// empty when the thread has no text reply yet.
func (c *Client) LatestMessageText(ctx context.Context, threadID string) (string, error) {
	var resp messageListResponse
	path := "/threads/" + threadID + "/messages?limit=1&order=desc"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	for _, part := range resp.Data[0].Content {
		if value := strings.TrimSpace(part.Text.Value); value != "" {
			return value, nil
		}
	}
	return "", nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, summarizeBody(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func summarizeBody(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
