package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// stubGetter serves canned pages keyed by URL and records request order.
type stubGetter struct {
	pages    map[string][]byte
	errs     map[string]error
	requests []string
}

func (g *stubGetter) Fetch(ctx context.Context, u string, pol source.Politeness) ([]byte, error) {
	g.requests = append(g.requests, u)
	if err := g.errs[u]; err != nil {
		return nil, err
	}
	body, ok := g.pages[u]
	if !ok {
		return nil, fmt.Errorf("request %s: 404 Not Found: %w", u, domain.ErrPermanentSource)
	}
	return body, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func htmlSource() source.Descriptor {
	return source.Descriptor{
		ID:       "gulf-news",
		Name:     "Gulf News Business",
		Kind:     source.KindHTML,
		Endpoint: "https://gulfnews.example.com/business",
		Rules: source.Rules{
			Item:        "article.story",
			Title:       "h2.headline",
			Body:        "p.teaser",
			Link:        "a.permalink",
			Date:        "time.published",
			DateLayouts: []string{"Jan 2, 2006", time.RFC3339},
		},
	}
}

const listingPage = `
<html><body>
  <article class="story">
    <h2 class="headline">UAE announces solar expansion</h2>
    <p class="teaser">The programme adds 2GW of capacity.</p>
    <a class="permalink" href="/business/uae-solar-expansion">Read</a>
    <time class="published">Aug 18, 2026</time>
  </article>
  <article class="story">
    <h2 class="headline">Qatar airways orders widebodies</h2>
    <p class="teaser">The carrier confirmed a fleet order.</p>
    <a class="permalink" href="https://gulfnews.example.com/business/qatar-fleet-order">Read</a>
    <time class="published" datetime="2026-08-17T09:30:00Z">yesterday</time>
  </article>
  <article class="story">
    <h2 class="headline"></h2>
    <p class="teaser">No headline, should be skipped.</p>
    <a class="permalink" href="/business/broken">Read</a>
    <time class="published">Aug 16, 2026</time>
  </article>
</body></html>`

func TestHTMLScannerExtractsCandidates(t *testing.T) {
	t.Parallel()

	src := htmlSource()
	getter := &stubGetter{pages: map[string][]byte{src.Endpoint: []byte(listingPage)}}

	sc := NewHTMLScanner(getter, testLogger())
	got, err := sc.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("extracted %d candidates, want 2 (item without title skipped)", len(got))
	}

	first := got[0]
	if first.Title != "UAE announces solar expansion" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.Link != "https://gulfnews.example.com/business/uae-solar-expansion" {
		t.Fatalf("relative link not resolved: %q", first.Link)
	}
	if first.Body != "The programme adds 2GW of capacity." {
		t.Fatalf("unexpected body %q", first.Body)
	}
	want := time.Date(2026, time.August, 18, 0, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("published = %v, want %v", first.PublishedAt, want)
	}
	if first.SourceID != "gulf-news" {
		t.Fatalf("unexpected source id %q", first.SourceID)
	}

	second := got[1]
	wantSecond := time.Date(2026, time.August, 17, 9, 30, 0, 0, time.UTC)
	if !second.PublishedAt.Equal(wantSecond) {
		t.Fatalf("datetime attribute not preferred: got %v, want %v", second.PublishedAt, wantSecond)
	}
}

func TestHTMLScannerPaginatesUntilEmptyPage(t *testing.T) {
	t.Parallel()

	src := htmlSource()
	src.MaxPages = 5
	src.PageParam = "page"

	page2 := `
<html><body>
  <article class="story">
    <h2 class="headline">Saudi fund backs logistics hub</h2>
    <p class="teaser">A new corridor project.</p>
    <a class="permalink" href="/business/saudi-logistics">Read</a>
    <time class="published">Aug 15, 2026</time>
  </article>
</body></html>`

	getter := &stubGetter{pages: map[string][]byte{
		src.Endpoint:             []byte(listingPage),
		src.Endpoint + "?page=2": []byte(page2),
		src.Endpoint + "?page=3": []byte(`<html><body></body></html>`),
	}}

	sc := NewHTMLScanner(getter, testLogger())
	got, err := sc.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("extracted %d candidates across pages, want 3", len(got))
	}
	if len(getter.requests) != 3 {
		t.Fatalf("issued %d requests, want 3 (stop on empty page)", len(getter.requests))
	}
}

func TestHTMLScannerKeepsEarlierPagesOnLateFailure(t *testing.T) {
	t.Parallel()

	src := htmlSource()
	src.MaxPages = 3
	src.PageParam = "page"

	getter := &stubGetter{
		pages: map[string][]byte{src.Endpoint: []byte(listingPage)},
		errs: map[string]error{
			src.Endpoint + "?page=2": fmt.Errorf("request: %w", domain.ErrNetworkTransient),
		},
	}

	sc := NewHTMLScanner(getter, testLogger())
	got, err := sc.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan returned error: %v, want partial results", err)
	}
	if len(got) != 2 {
		t.Fatalf("extracted %d candidates, want the 2 from page one", len(got))
	}
}

func TestHTMLScannerFirstPageFailurePropagates(t *testing.T) {
	t.Parallel()

	src := htmlSource()
	getter := &stubGetter{pages: map[string][]byte{}}

	sc := NewHTMLScanner(getter, testLogger())
	_, err := sc.Scan(context.Background(), src)
	if err == nil {
		t.Fatal("Scan succeeded with an unreachable first page")
	}
}

func TestHTMLScannerDeduplicatesLinksWithinScan(t *testing.T) {
	t.Parallel()

	duplicated := `
<html><body>
  <article class="story">
    <h2 class="headline">Same story</h2>
    <p class="teaser">Body.</p>
    <a class="permalink" href="/business/story">Read</a>
    <time class="published">Aug 18, 2026</time>
  </article>
  <article class="story">
    <h2 class="headline">Same story again</h2>
    <p class="teaser">Body.</p>
    <a class="permalink" href="/business/story">Read</a>
    <time class="published">Aug 18, 2026</time>
  </article>
</body></html>`

	src := htmlSource()
	getter := &stubGetter{pages: map[string][]byte{src.Endpoint: []byte(duplicated)}}

	sc := NewHTMLScanner(getter, testLogger())
	got, err := sc.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("extracted %d candidates, want 1 after link dedup", len(got))
	}
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	got, err := buildPageURL("https://gulfnews.example.com/business?section=energy", "page", 3)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	q := parsed.Query()
	if q.Get("page") != "3" {
		t.Fatalf("page = %q, want 3", q.Get("page"))
	}
	if q.Get("section") != "energy" {
		t.Fatalf("section = %q, want energy preserved", q.Get("section"))
	}

	same, err := buildPageURL("https://gulfnews.example.com/business", "page", 1)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}
	if same != "https://gulfnews.example.com/business" {
		t.Fatalf("first page URL = %q, want the bare endpoint", same)
	}
}
