package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedFetcher replays a fixed candidate stream and outcome set.
type scriptedFetcher struct {
	candidates []domain.RawCandidate
	outcomes   []domain.SourceOutcome
}

func (f *scriptedFetcher) Fetch(ctx context.Context, _ []source.Descriptor, out chan<- domain.RawCandidate) []domain.SourceOutcome {
	for _, c := range f.candidates {
		select {
		case out <- c:
		case <-ctx.Done():
			return f.outcomes
		}
	}
	return f.outcomes
}

func feedRegistry(t *testing.T, ids ...string) *source.Registry {
	t.Helper()
	descriptors := make([]source.Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptors = append(descriptors, source.Descriptor{
			ID:       id,
			Name:     id,
			Kind:     source.KindFeed,
			Endpoint: "https://feeds.example/" + id,
		})
	}
	reg, err := source.NewRegistry(descriptors)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestCrawlCollapsesTrackingParamDuplicates(t *testing.T) {
	t.Parallel()

	firstSeen := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	secondSeen := firstSeen.Add(time.Hour)
	body := "Adnoc signs a new solar offtake agreement with regional utilities."

	fetch := &scriptedFetcher{
		candidates: []domain.RawCandidate{
			{
				SourceID:    "gulf-business",
				Title:       "Adnoc signs solar offtake",
				Body:        body,
				Link:        "https://news.example/adnoc-solar?utm_source=rss&utm_medium=feed",
				PublishedAt: firstSeen.Add(-2 * time.Hour),
				FetchedAt:   firstSeen,
			},
			{
				SourceID:    "meed",
				Title:       "Adnoc signs solar offtake",
				Body:        body,
				Link:        "https://news.example/adnoc-solar?fbclid=abc123",
				PublishedAt: firstSeen.Add(-2 * time.Hour),
				FetchedAt:   secondSeen,
			},
		},
		outcomes: []domain.SourceOutcome{
			{SourceID: "gulf-business", Candidates: 1},
			{SourceID: "meed", Candidates: 1},
		},
	}
	articles := store.NewMemStore()
	crawl := NewCrawl(CrawlDeps{
		Registry: feedRegistry(t, "gulf-business", "meed"),
		Fetcher:  fetch,
		Store:    articles,
		Logger:   testLogger(),
	})

	summary, err := crawl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Created != 1 || summary.Unchanged != 1 {
		t.Fatalf("created=%d unchanged=%d, want 1/1", summary.Created, summary.Unchanged)
	}

	n, err := articles.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("store holds %d articles, want 1", n)
	}

	key, err := domain.KeyOf(fetch.candidates[0])
	if err != nil {
		t.Fatalf("KeyOf: %v", err)
	}
	stored, err := articles.Get(context.Background(), key.Fingerprint)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.LastSeen.Equal(secondSeen) {
		t.Fatalf("LastSeen = %v, want the later sighting %v", stored.LastSeen, secondSeen)
	}
	if !stored.FirstSeen.Equal(firstSeen) {
		t.Fatalf("FirstSeen = %v, want the first sighting %v", stored.FirstSeen, firstSeen)
	}
}

func TestCrawlTalliesEveryIngestOutcome(t *testing.T) {
	t.Parallel()

	seen := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	fetch := &scriptedFetcher{
		candidates: []domain.RawCandidate{
			{
				SourceID:  "gulf-business",
				Title:     "Neom awards tunnel package",
				Body:      "The package covers twelve kilometres of utility tunnels.",
				Link:      "https://news.example/neom-tunnels",
				FetchedAt: seen,
			},
			{
				SourceID:  "meed",
				Title:     "Neom awards tunnel package",
				Body:      "The package covers twelve kilometres of utility tunnels.",
				Link:      "https://news.example/neom-tunnels",
				FetchedAt: seen.Add(time.Minute),
			},
			{
				SourceID:  "gulf-business",
				Title:     "Neom awards tunnel package",
				Body:      "Correction: the package covers fourteen kilometres of tunnels.",
				Link:      "https://news.example/neom-tunnels",
				FetchedAt: seen.Add(2 * time.Minute),
			},
			{
				SourceID:  "meed",
				Title:     "Broken entry",
				Body:      "A candidate whose link cannot be canonicalized.",
				Link:      "not a url",
				FetchedAt: seen,
			},
		},
		outcomes: []domain.SourceOutcome{
			{SourceID: "gulf-business", Candidates: 2},
			{SourceID: "meed", Candidates: 2},
		},
	}
	crawl := NewCrawl(CrawlDeps{
		Registry: feedRegistry(t, "gulf-business", "meed"),
		Fetcher:  fetch,
		Store:    store.NewMemStore(),
		Workers:  1, // serialize ingest so the outcome sequence is deterministic
		Logger:   testLogger(),
	})

	summary, err := crawl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("Created = %d, want 1", summary.Created)
	}
	if summary.Unchanged != 1 {
		t.Fatalf("Unchanged = %d, want 1", summary.Unchanged)
	}
	if summary.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", summary.Updated)
	}
	if summary.Rejected != 1 {
		t.Fatalf("Rejected = %d, want 1", summary.Rejected)
	}
	if summary.Sources != 2 || len(summary.Outcomes) != 2 {
		t.Fatalf("sources=%d outcomes=%d, want 2/2", summary.Sources, len(summary.Outcomes))
	}
}

func TestCrawlWithEmptyRegistry(t *testing.T) {
	t.Parallel()

	crawl := NewCrawl(CrawlDeps{
		Registry: feedRegistry(t),
		Fetcher:  &scriptedFetcher{},
		Store:    store.NewMemStore(),
		Logger:   testLogger(),
	})

	summary, err := crawl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Sources != 0 || summary.Created != 0 || len(summary.Outcomes) != 0 {
		t.Fatalf("empty registry should yield an empty summary: %+v", summary)
	}
}

func TestCrawlSurfacesSourceFailures(t *testing.T) {
	t.Parallel()

	fetch := &scriptedFetcher{
		outcomes: []domain.SourceOutcome{
			{SourceID: "gulf-business", Candidates: 0, Failure: domain.FailureNetwork, Err: domain.ErrNetworkTransient},
			{SourceID: "meed", Candidates: 3},
		},
	}
	crawl := NewCrawl(CrawlDeps{
		Registry: feedRegistry(t, "gulf-business", "meed"),
		Fetcher:  fetch,
		Store:    store.NewMemStore(),
		Logger:   testLogger(),
	})

	summary, err := crawl.Run(context.Background())
	if err != nil {
		t.Fatalf("a failed source must not fail the run: %v", err)
	}
	if got := summary.FailedSources(); got != 1 {
		t.Fatalf("FailedSources = %d, want 1", got)
	}
}

func TestCrawlReportsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crawl := NewCrawl(CrawlDeps{
		Registry: feedRegistry(t, "gulf-business"),
		Fetcher: &scriptedFetcher{
			candidates: []domain.RawCandidate{{
				SourceID: "gulf-business",
				Title:    "Never ingested",
				Body:     "b",
				Link:     "https://news.example/x",
			}},
			outcomes: []domain.SourceOutcome{{SourceID: "gulf-business"}},
		},
		Store:  store.NewMemStore(),
		Logger: testLogger(),
	})

	summary, err := crawl.Run(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if summary.Created != 0 {
		t.Fatalf("cancelled run ingested %d articles", summary.Created)
	}
}
