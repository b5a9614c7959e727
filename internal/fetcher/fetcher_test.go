package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/scanner"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// fakeScanner serves canned results per source ID.
type fakeScanner struct {
	kind    source.Kind
	results map[string][]domain.RawCandidate
	errs    map[string]error

	mu      sync.Mutex
	active  int
	maxSeen int
	delay   time.Duration
}

func (s *fakeScanner) Kind() source.Kind { return s.kind }

func (s *fakeScanner) Scan(ctx context.Context, src source.Descriptor) ([]domain.RawCandidate, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if err := s.errs[src.ID]; err != nil {
		return nil, err
	}
	return s.results[src.ID], nil
}

func candidate(sourceID, link string) domain.RawCandidate {
	return domain.RawCandidate{
		SourceID:  sourceID,
		Title:     "story from " + sourceID,
		Body:      "body text",
		Link:      link,
		FetchedAt: time.Now().UTC(),
	}
}

func drain(out chan domain.RawCandidate) (*[]domain.RawCandidate, chan struct{}) {
	var got []domain.RawCandidate
	done := make(chan struct{})
	go func() {
		for c := range out {
			got = append(got, c)
		}
		close(done)
	}()
	return &got, done
}

func TestFetcherIsolatesFailedSources(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{
		kind: source.KindHTML,
		results: map[string][]domain.RawCandidate{
			"healthy": {
				candidate("healthy", "https://healthy.example.com/a"),
				candidate("healthy", "https://healthy.example.com/b"),
			},
			"stale-rules": nil,
		},
		errs: map[string]error{
			"gone":    fmt.Errorf("request: 404 Not Found: %w", domain.ErrPermanentSource),
			"flaky":   fmt.Errorf("request: %w: connection reset", domain.ErrNetworkTransient),
			"healthy": nil,
		},
	}
	reg := scanner.NewRegistry()
	reg.Register(fake)

	sources := []source.Descriptor{
		{ID: "healthy", Kind: source.KindHTML},
		{ID: "gone", Kind: source.KindHTML},
		{ID: "flaky", Kind: source.KindHTML},
		{ID: "stale-rules", Kind: source.KindHTML},
	}

	out := make(chan domain.RawCandidate, 16)
	got, done := drain(out)

	f := New(reg, 2, testLogger())
	outcomes := f.Fetch(context.Background(), sources, out)
	close(out)
	<-done

	if len(outcomes) != len(sources) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(sources))
	}

	byID := map[string]domain.SourceOutcome{}
	for _, o := range outcomes {
		byID[o.SourceID] = o
	}

	if o := byID["healthy"]; o.Failed() || o.Candidates != 2 {
		t.Fatalf("healthy outcome = %+v, want 2 candidates and no failure", o)
	}
	if o := byID["gone"]; o.Failure != domain.FailurePermanent {
		t.Fatalf("gone outcome = %+v, want permanent failure", o)
	}
	if o := byID["flaky"]; o.Failure != domain.FailureNetwork {
		t.Fatalf("flaky outcome = %+v, want network failure", o)
	}
	if o := byID["stale-rules"]; o.Failure != domain.FailureExtraction || !errors.Is(o.Err, domain.ErrExtractionMismatch) {
		t.Fatalf("stale-rules outcome = %+v, want extraction mismatch", o)
	}

	if len(*got) != 2 {
		t.Fatalf("collected %d candidates, want the 2 from the healthy source", len(*got))
	}
}

func TestFetcherBoundsConcurrency(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{
		kind:  source.KindFeed,
		delay: 30 * time.Millisecond,
		results: map[string][]domain.RawCandidate{
			"s1": {candidate("s1", "https://one.example.com/a")},
			"s2": {candidate("s2", "https://two.example.com/a")},
			"s3": {candidate("s3", "https://three.example.com/a")},
			"s4": {candidate("s4", "https://four.example.com/a")},
		},
	}
	reg := scanner.NewRegistry()
	reg.Register(fake)

	sources := []source.Descriptor{
		{ID: "s1", Kind: source.KindFeed},
		{ID: "s2", Kind: source.KindFeed},
		{ID: "s3", Kind: source.KindFeed},
		{ID: "s4", Kind: source.KindFeed},
	}

	out := make(chan domain.RawCandidate, 16)
	_, done := drain(out)

	f := New(reg, 2, testLogger())
	f.Fetch(context.Background(), sources, out)
	close(out)
	<-done

	fake.mu.Lock()
	maxSeen := fake.maxSeen
	fake.mu.Unlock()
	if maxSeen > 2 {
		t.Fatalf("observed %d concurrent scans, want at most 2", maxSeen)
	}
}

func TestFetcherUnknownKindRecordsPermanentFailure(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	out := make(chan domain.RawCandidate, 1)
	_, done := drain(out)

	f := New(reg, 1, testLogger())
	outcomes := f.Fetch(context.Background(), []source.Descriptor{{ID: "odd", Kind: "sitemap"}}, out)
	close(out)
	<-done

	if len(outcomes) != 1 || outcomes[0].Failure != domain.FailurePermanent {
		t.Fatalf("outcomes = %+v, want one permanent failure", outcomes)
	}
}

func TestFetcherStopsDispatchOnCancellation(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{kind: source.KindFeed, results: map[string][]domain.RawCandidate{}}
	reg := scanner.NewRegistry()
	reg.Register(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sources := []source.Descriptor{
		{ID: "s1", Kind: source.KindFeed},
		{ID: "s2", Kind: source.KindFeed},
	}

	out := make(chan domain.RawCandidate, 4)
	_, done := drain(out)

	f := New(reg, 1, testLogger())
	outcomes := f.Fetch(ctx, sources, out)
	close(out)
	<-done

	fake.mu.Lock()
	maxSeen := fake.maxSeen
	fake.mu.Unlock()
	if maxSeen != 0 {
		t.Fatal("sources were scanned after cancellation")
	}
	for _, o := range outcomes {
		if o.Err == nil {
			t.Fatalf("outcome %+v missing cancellation error", o)
		}
	}
}
