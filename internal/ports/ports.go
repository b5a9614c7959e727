package ports

import (
	"context"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

// ArticleStore persists deduplicated articles and their annotations.
type ArticleStore interface {
	// Ingest derives the candidate's fingerprint and applies it, reporting
	// whether the store created, updated or left the article unchanged.
	Ingest(ctx context.Context, c domain.RawCandidate) (domain.IngestResult, error)

	// Get returns the article stored under fp, or domain.ErrArticleNotFound.
	Get(ctx context.Context, fp domain.Fingerprint) (domain.StoredArticle, error)

	// Window returns articles whose effective time falls in [from, to].
	Window(ctx context.Context, from, to time.Time) ([]domain.StoredArticle, error)

	// Annotate attaches analysis output to a stored article.
	Annotate(ctx context.Context, fp domain.Fingerprint, ann domain.Annotations) error

	// Count reports how many articles the store holds.
	Count(ctx context.Context) (int, error)
}

// Cache is a byte cache with TTL semantics, keyed by opaque strings.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ArtifactSink stores rendered report artifacts.
type ArtifactSink interface {
	Store(ctx context.Context, artifact domain.Artifact) (string, error)
}
