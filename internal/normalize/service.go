// Package normalize reshapes the assistant's free-text reply into ordered
// message segments via a second, deterministic model call.
package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/enlaceai/enlace/internal/channel"
)

// Service calls the formatting model with a fixed system instruction and
// parses its JSON-object output into delivery segments.
type Service struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string
	model      string
	prompt     string
}

// NewService creates a normalizer. The system instruction is read once
// from promptPath at startup.
func NewService(log *slog.Logger, apiKey, baseURL, model, promptPath string, timeout time.Duration) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	prompt, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, fmt.Errorf("read format prompt: %w", err)
	}
	return &Service{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "normalize")),
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		prompt:     string(prompt),
	}, nil
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float32       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Normalize sends raw through the formatting model and parses the result
// into ordered segments. Provider failure, unparseable output, and output
// with no displayable text all degrade to channel.ErrNoUsableReply; the
// underlying cause goes to the log, never to the user.
func (s *Service) Normalize(ctx context.Context, raw string) (channel.Result, error) {
	content, err := s.format(ctx, raw)
	if err != nil {
		s.logger.Error("format call failed", slog.Any("error", err))
		return channel.Result{}, channel.ErrNoUsableReply
	}
	segments, err := ParseSegments(content)
	if err != nil {
		s.logger.Error("parse formatted reply failed", slog.Any("error", err))
		return channel.Result{}, channel.ErrNoUsableReply
	}
	if len(segments) == 0 {
		return channel.Result{}, channel.ErrNoUsableReply
	}
	return channel.Result{Segments: segments}, nil
}

func (s *Service) format(ctx context.Context, raw string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: s.prompt},
			{Role: "user", Content: raw},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}
	var decoded chatCompletionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// ParseSegments decodes a JSON object of key -> message text, keeping the
// keys in document order and dropping empty values. Code fences around
// the object are tolerated.
func ParseSegments(content string) ([]channel.Segment, error) {
	content = stripCodeFences(content)
	dec := json.NewDecoder(strings.NewReader(content))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var segments []channel.Segment
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, _ := keyTok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		text, ok := value.(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, channel.Segment{Key: key, Text: text})
	}
	return segments, nil
}

func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
