package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastClient(httpClient *http.Client) *Client {
	c := NewClient(httpClient, source.Politeness{Timeout: 5 * time.Second}, testLogger())
	c.retryBase = time.Millisecond
	return c
}

func TestClientRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	c := fastClient(srv.Client())
	body, err := c.Fetch(context.Background(), srv.URL, source.Politeness{MaxRetries: 2})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("server saw %d requests, want 3", got)
	}
}

func TestClientStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		wantErr      error
		wantRequests int32
	}{
		{name: "404 is permanent and not retried", status: http.StatusNotFound, wantErr: domain.ErrPermanentSource, wantRequests: 1},
		{name: "403 is permanent and not retried", status: http.StatusForbidden, wantErr: domain.ErrPermanentSource, wantRequests: 1},
		{name: "503 is transient and retried", status: http.StatusServiceUnavailable, wantErr: domain.ErrNetworkTransient, wantRequests: 3},
		{name: "429 is transient and retried", status: http.StatusTooManyRequests, wantErr: domain.ErrNetworkTransient, wantRequests: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := fastClient(srv.Client())
			_, err := c.Fetch(context.Background(), srv.URL, source.Politeness{MaxRetries: 2})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch error = %v, want %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantRequests {
				t.Fatalf("server saw %d requests, want %d", got, tt.wantRequests)
			}
		})
	}
}

func TestClientExhaustedRetriesKeepTransientMark(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := fastClient(srv.Client())
	_, err := c.Fetch(context.Background(), srv.URL, source.Politeness{MaxRetries: 1})
	if !domain.IsTransient(err) {
		t.Fatalf("exhausted fetch error %v lost its transient classification", err)
	}
}

func TestClientHonorsCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := fastClient(srv.Client())
	_, err := c.Fetch(ctx, srv.URL, source.Politeness{MaxRetries: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch error = %v, want context.Canceled", err)
	}
}

func TestClientRejectsOriginlessURL(t *testing.T) {
	t.Parallel()

	c := fastClient(nil)
	_, err := c.Fetch(context.Background(), "/relative/path", source.Politeness{})
	if !errors.Is(err, domain.ErrPermanentSource) {
		t.Fatalf("Fetch error = %v, want ErrPermanentSource", err)
	}
}
