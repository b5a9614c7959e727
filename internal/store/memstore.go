package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

const shardCount = 64

// shard indexes its articles both ways. Because the fingerprint covers the
// canonical URL, every fingerprint an article ever carries maps to the same
// shard, so a republished edit re-keys under one lock.
type shard struct {
	mu            sync.RWMutex
	byFingerprint map[domain.Fingerprint]*domain.StoredArticle
	byLink        map[string]*domain.StoredArticle
}

// MemStore keeps deduplicated articles in memory, sharded by canonical URL
// so concurrent ingestion from fetch workers contends per key group rather
// than on one store-wide lock.
type MemStore struct {
	shards [shardCount]*shard
}

var _ ports.ArticleStore = (*MemStore)(nil)

// NewMemStore builds an empty store.
func NewMemStore() *MemStore {
	s := &MemStore{}
	for i := range s.shards {
		s.shards[i] = &shard{
			byFingerprint: map[domain.Fingerprint]*domain.StoredArticle{},
			byLink:        map[string]*domain.StoredArticle{},
		}
	}
	return s
}

func (s *MemStore) shardForLink(canonicalURL string) *shard {
	h := fnv.New32a()
	h.Write([]byte(canonicalURL))
	return s.shards[h.Sum32()%shardCount]
}

// Ingest applies one candidate. An unseen article is created; a re-sighting
// with the same body only bumps LastSeen; a republication with an edited
// body supersedes the stored content under a fresh fingerprint while
// FirstSeen and (stale-flagged) annotations survive.
func (s *MemStore) Ingest(ctx context.Context, c domain.RawCandidate) (domain.IngestResult, error) {
	key, err := domain.KeyOf(c)
	if err != nil {
		return "", fmt.Errorf("ingest candidate from %s: %w", c.SourceID, err)
	}

	seenAt := c.FetchedAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	sh := s.shardForLink(key.CanonicalURL)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.byFingerprint[key.Fingerprint]; ok {
		// LastSeen only moves forward so concurrent sightings converge.
		if seenAt.After(existing.LastSeen) {
			existing.LastSeen = seenAt
		}
		return domain.IngestUnchanged, nil
	}

	if existing, ok := sh.byLink[key.CanonicalURL]; ok {
		delete(sh.byFingerprint, existing.Fingerprint)
		existing.Fingerprint = key.Fingerprint
		existing.BodyHash = key.BodyHash
		existing.SourceID = c.SourceID
		existing.Title = c.Title
		existing.Body = c.Body
		if !c.PublishedAt.IsZero() {
			existing.PublishedAt = c.PublishedAt
		}
		if seenAt.After(existing.LastSeen) {
			existing.LastSeen = seenAt
		}
		if existing.Annotations != nil {
			existing.Annotations.Stale = true
		}
		sh.byFingerprint[key.Fingerprint] = existing
		return domain.IngestUpdated, nil
	}

	a := &domain.StoredArticle{
		Fingerprint:  key.Fingerprint,
		SourceID:     c.SourceID,
		Title:        c.Title,
		Body:         c.Body,
		CanonicalURL: key.CanonicalURL,
		BodyHash:     key.BodyHash,
		PublishedAt:  c.PublishedAt,
		FirstSeen:    seenAt,
		LastSeen:     seenAt,
	}
	sh.byFingerprint[key.Fingerprint] = a
	sh.byLink[key.CanonicalURL] = a
	return domain.IngestCreated, nil
}

// Get returns a detached copy of the article stored under fp. A fingerprint
// superseded by a later edit is gone.
func (s *MemStore) Get(ctx context.Context, fp domain.Fingerprint) (domain.StoredArticle, error) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		a, ok := sh.byFingerprint[fp]
		if ok {
			out := cloneArticle(a)
			sh.mu.RUnlock()
			return out, nil
		}
		sh.mu.RUnlock()
	}
	return domain.StoredArticle{}, fmt.Errorf("get %s: %w", fp, domain.ErrArticleNotFound)
}

// Window returns detached copies of articles whose effective time falls in
// [from, to], newest first.
func (s *MemStore) Window(ctx context.Context, from, to time.Time) ([]domain.StoredArticle, error) {
	var out []domain.StoredArticle
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, a := range sh.byLink {
			at := a.EffectiveTime()
			if at.Before(from) || at.After(to) {
				continue
			}
			out = append(out, cloneArticle(a))
		}
		sh.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EffectiveTime(), out[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out, nil
}

// Annotate attaches analysis output, keeping relevance entries other clients
// already earned.
func (s *MemStore) Annotate(ctx context.Context, fp domain.Fingerprint, ann domain.Annotations) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		a, ok := sh.byFingerprint[fp]
		if !ok {
			sh.mu.Unlock()
			continue
		}

		merged := ann
		merged.RelevanceByClient = mergeRelevance(a.Annotations, ann.RelevanceByClient)
		if merged.AnalyzedAt.IsZero() {
			merged.AnalyzedAt = time.Now().UTC()
		}
		a.Annotations = &merged
		sh.mu.Unlock()
		return nil
	}
	return fmt.Errorf("annotate %s: %w", fp, domain.ErrArticleNotFound)
}

// Count reports how many articles the store holds.
func (s *MemStore) Count(ctx context.Context) (int, error) {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.byLink)
		sh.mu.RUnlock()
	}
	return total, nil
}

func mergeRelevance(prior *domain.Annotations, incoming map[string]float64) map[string]float64 {
	if prior == nil || prior.RelevanceByClient == nil {
		if incoming == nil {
			return nil
		}
		copied := make(map[string]float64, len(incoming))
		for k, v := range incoming {
			copied[k] = v
		}
		return copied
	}

	merged := make(map[string]float64, len(prior.RelevanceByClient)+len(incoming))
	for k, v := range prior.RelevanceByClient {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

func cloneArticle(a *domain.StoredArticle) domain.StoredArticle {
	out := *a
	if a.Annotations != nil {
		ann := *a.Annotations
		ann.Keywords = append([]domain.KeywordCount(nil), a.Annotations.Keywords...)
		ann.Topics = append([]string(nil), a.Annotations.Topics...)
		if a.Annotations.RelevanceByClient != nil {
			ann.RelevanceByClient = make(map[string]float64, len(a.Annotations.RelevanceByClient))
			for k, v := range a.Annotations.RelevanceByClient {
				ann.RelevanceByClient[k] = v
			}
		}
		out.Annotations = &ann
	}
	return out
}
