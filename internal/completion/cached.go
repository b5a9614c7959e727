package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

// CachedClient deduplicates identical prompts. A cache hit skips the service
// entirely, and concurrent misses for the same fingerprint share one
// in-flight call. Cache failures degrade to plain calls.
type CachedClient struct {
	inner  Completer
	cache  ports.Cache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

var _ Completer = (*CachedClient)(nil)

func NewCached(inner Completer, cache ports.Cache, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "completion_cache"),
	}
}

func (c *CachedClient) Complete(ctx context.Context, req Request) (Response, error) {
	key := PromptFingerprint(req)
	if resp, ok := c.lookup(ctx, key); ok {
		return resp, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := c.inner.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return Response{}, err
	}
	return v.(Response), nil
}

func (c *CachedClient) lookup(ctx context.Context, key string) (Response, bool) {
	if c.cache == nil {
		return Response{}, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		return Response{}, false
	}
	if !ok {
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return Response{}, false
	}
	resp.Cached = true
	return resp, true
}

func (c *CachedClient) store(ctx context.Context, key string, resp Response) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

// PromptFingerprint keys a request by everything that shapes its output.
func PromptFingerprint(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%g", req.Model, req.System, req.Prompt, req.MaxTokens, req.Temperature)
	return "completion:" + hex.EncodeToString(h.Sum(nil))
}
