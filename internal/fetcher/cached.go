package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// PageGetter is the fetch surface CachedGetter decorates.
type PageGetter interface {
	Fetch(ctx context.Context, url string, pol source.Politeness) ([]byte, error)
}

// CachedGetter serves page bodies from the cache before going to the origin.
// Entries are keyed by canonical URL, so tracking-parameter variants of one
// page share a slot. Cache failures degrade to origin fetches.
type CachedGetter struct {
	inner  PageGetter
	cache  ports.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedGetter wraps a getter with a TTL-bounded page cache.
func NewCachedGetter(inner PageGetter, cache ports.Cache, ttl time.Duration, logger *slog.Logger) *CachedGetter {
	return &CachedGetter{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "page_cache"),
	}
}

// Fetch returns the cached body when one is live, fetching from the origin
// and filling the cache otherwise.
func (g *CachedGetter) Fetch(ctx context.Context, rawURL string, pol source.Politeness) ([]byte, error) {
	key, err := pageKey(rawURL)
	if err != nil {
		// An uncanonicalizable link cannot be keyed; fetch uncached and let
		// the client surface the real failure.
		return g.inner.Fetch(ctx, rawURL, pol)
	}

	body, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("page cache read failed", "url", rawURL, "error", err)
	} else if ok {
		return body, nil
	}

	body, err = g.inner.Fetch(ctx, rawURL, pol)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, body, g.ttl); err != nil {
		g.logger.Warn("page cache write failed", "url", rawURL, "error", err)
	}
	return body, nil
}

func pageKey(rawURL string) (string, error) {
	canonical, err := domain.CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	return "page:" + canonical, nil
}
