package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Client drives a Transport through the retry ladder: exponential backoff
// per model, one switch from the primary to the fallback model, terminal
// errors surfaced immediately.
type Client struct {
	transport Transport
	policy    Policy
	logger    *slog.Logger

	// sleep is swapped out by tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Completer = (*Client)(nil)

func New(transport Transport, policy Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		policy:    policy.withDefaults(),
		logger:    logger.With("component", "completion"),
		sleep:     sleepCtx,
	}
}

// Complete runs the request against the primary model and, once its attempt
// budget is exhausted on retryable failures, once more against the fallback.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	primary := c.policy.PrimaryModel
	if req.Model != "" {
		primary = req.Model
	}
	models := []string{primary}
	if fb := c.policy.FallbackModel; fb != "" && fb != primary {
		models = append(models, fb)
	}

	attempts := 0
	fallback := false
	var lastErr error
	for i, model := range models {
		if i > 0 {
			fallback = true
			c.logger.Warn("switching to fallback model", "from", models[0], "to", model)
		}
		for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
			if attempt > 1 {
				delay := c.policy.Delay(attempt - 1)
				c.logger.Debug("backing off", "model", model, "attempt", attempt, "delay", delay)
				if err := c.sleep(ctx, delay); err != nil {
					return Response{}, err
				}
			}
			attempts++

			call := req
			call.Model = model
			resp, err := c.transport.Do(ctx, call)
			if err == nil {
				resp.Model = model
				resp.Attempts = attempts
				resp.FallbackUsed = fallback
				return resp, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			if !IsRetryable(err) {
				return Response{}, fmt.Errorf("complete on %s: %w", model, err)
			}
			c.logger.Warn("completion attempt failed", "model", model, "attempt", attempt, "error", err)
		}
	}
	return Response{}, &ExhaustedError{Attempts: attempts, Models: models, Last: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
