package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

const (
	userAgent    = "gccintel/1.0"
	maxBodyBytes = 4 << 20
)

// Client fetches URLs politely: it paces requests per origin, bounds each
// request with the source's timeout, and retries transient failures with
// linear backoff. Safe for concurrent use by the fetch workers.
type Client struct {
	http     *http.Client
	throttle *originThrottle
	logger   *slog.Logger
	defaults source.Politeness

	// retryBase scales the linear backoff between attempts.
	retryBase time.Duration
}

// NewClient wires an HTTP client and the politeness defaults applied when a
// source leaves its own policy fields zero.
func NewClient(httpClient *http.Client, defaults source.Politeness, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:      httpClient,
		throttle:  newOriginThrottle(),
		logger:    logger.With("component", "fetch_client"),
		defaults:  defaults,
		retryBase: 500 * time.Millisecond,
	}
}

// Fetch retrieves one URL under the given politeness policy and returns the
// response body. Transient failures (network errors, 5xx, 429) are retried
// up to the policy's MaxRetries; any other 4xx fails immediately with
// domain.ErrPermanentSource.
func (c *Client) Fetch(ctx context.Context, rawURL string, pol source.Politeness) ([]byte, error) {
	pol = c.merged(pol)

	origin, err := originOf(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %v", rawURL, domain.ErrPermanentSource, err)
	}

	attempts := pol.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.retryBase * time.Duration(attempt-1)
			c.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := c.throttle.wait(ctx, origin, pol.MinInterval); err != nil {
			return nil, err
		}

		body, err := c.once(ctx, rawURL, pol.Timeout)
		if err == nil {
			return body, nil
		}
		if !domain.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s: %d attempts: %w", rawURL, attempts, lastErr)
}

func (c *Client) once(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w: %v", rawURL, domain.ErrPermanentSource, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// The caller's cancellation is not a source failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request %s: %w: %v", rawURL, domain.ErrNetworkTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w: %v", rawURL, domain.ErrNetworkTransient, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("request %s: %s: %w", rawURL, resp.Status, domain.ErrNetworkTransient)
	default:
		return nil, fmt.Errorf("request %s: %s: %w", rawURL, resp.Status, domain.ErrPermanentSource)
	}
}

func (c *Client) merged(pol source.Politeness) source.Politeness {
	if pol.MinInterval == 0 {
		pol.MinInterval = c.defaults.MinInterval
	}
	if pol.Timeout == 0 {
		pol.Timeout = c.defaults.Timeout
	}
	if pol.MaxRetries == 0 {
		pol.MaxRetries = c.defaults.MaxRetries
	}
	return pol
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
