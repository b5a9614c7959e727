package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/completion"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/config"
)

func newTransport(endpoint string) *OpenAITransport {
	return NewOpenAITransport(config.LLMConfig{Endpoint: endpoint, APIKey: "test-key"})
}

func TestDoSendsChatPayloadAndParsesReply(t *testing.T) {
	t.Parallel()

	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  GCC markets rallied.  "}}]}`))
	}))
	defer srv.Close()

	resp, err := newTransport(srv.URL).Do(context.Background(), completion.Request{
		Model:       "gpt-4o",
		System:      "You are a business analyst.",
		Prompt:      "Summarize the week.",
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Text != "GCC markets rallied." {
		t.Fatalf("Text = %q", resp.Text)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.Model != "gpt-4o" || got.MaxTokens != 256 {
		t.Fatalf("request payload = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestDoOmitsSystemMessageWhenEmpty(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	if _, err := newTransport(srv.URL).Do(context.Background(), completion.Request{Model: "m", Prompt: "p"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestDoClassifiesStatusCodes(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		status int
		want   error
	}{
		{"throttled", http.StatusTooManyRequests, completion.ErrRateLimited},
		{"server error", http.StatusInternalServerError, completion.ErrTransient},
		{"bad gateway", http.StatusBadGateway, completion.ErrTransient},
		{"unauthorized", http.StatusUnauthorized, completion.ErrAuth},
		{"forbidden", http.StatusForbidden, completion.ErrAuth},
		{"bad request", http.StatusBadRequest, completion.ErrInvalidRequest},
		{"not found", http.StatusNotFound, completion.ErrInvalidRequest},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tc.status)
			}))
			defer srv.Close()

			_, err := newTransport(srv.URL).Do(context.Background(), completion.Request{Model: "m", Prompt: "p"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d classified as %v, want %v", tc.status, err, tc.want)
			}
		})
	}
}

func TestDoTreatsGarbledReplyAsTransient(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		body string
	}{
		{"malformed json", `{"choices":`},
		{"no choices", `{"choices":[]}`},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTransport(srv.URL).Do(context.Background(), completion.Request{Model: "m", Prompt: "p"})
			if !errors.Is(err, completion.ErrTransient) {
				t.Fatalf("expected transient error, got %v", err)
			}
		})
	}
}

func TestDoRejectsMisconfiguredTransport(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAITransport(config.LLMConfig{}).Do(context.Background(), completion.Request{Model: "m", Prompt: "p"})
	if !errors.Is(err, completion.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestDoReturnsContextErrorWhenCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := newTransport(srv.URL).Do(ctx, completion.Request{Model: "m", Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
