package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/completion"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/config"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 1 << 20
)

// OpenAITransport speaks the OpenAI-compatible chat completions protocol and
// maps HTTP failures onto the completion error taxonomy.
type OpenAITransport struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ completion.Transport = (*OpenAITransport)(nil)

// NewOpenAITransport builds a transport from configuration.
func NewOpenAITransport(cfg config.LLMConfig) *OpenAITransport {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAITransport{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Do posts one chat completion request.
func (t *OpenAITransport) Do(ctx context.Context, req completion.Request) (completion.Response, error) {
	if t.endpoint == "" || t.apiKey == "" {
		return completion.Response{}, fmt.Errorf("transport misconfigured: %w", completion.ErrInvalidRequest)
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return completion.Response{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return completion.Response{}, fmt.Errorf("new request: %w: %v", completion.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return completion.Response{}, ctx.Err()
		}
		return completion.Response{}, fmt.Errorf("post chat completion: %w: %v", completion.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return completion.Response{}, err
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return completion.Response{}, fmt.Errorf("decode chat response: %w: %v", completion.ErrTransient, err)
	}
	if len(parsed.Choices) == 0 {
		return completion.Response{}, fmt.Errorf("chat response has no choices: %w", completion.ErrTransient)
	}
	return completion.Response{Text: strings.TrimSpace(parsed.Choices[0].Message.Content)}, nil
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(detail))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("chat %s: %s: %w", resp.Status, msg, completion.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("chat %s: %s: %w", resp.Status, msg, completion.ErrTransient)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("chat %s: %s: %w", resp.Status, msg, completion.ErrAuth)
	default:
		return fmt.Errorf("chat %s: %s: %w", resp.Status, msg, completion.ErrInvalidRequest)
	}
}
