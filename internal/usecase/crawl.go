// Package usecase holds the two operational entry points: running a crawl
// cycle and generating a client report. Everything else in the module exists
// to serve these.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// ingestBuffer decouples scan bursts from ingest latency.
const ingestBuffer = 64

const defaultIngestWorkers = 4

// CandidateFetcher drains a set of sources into a candidate stream.
type CandidateFetcher interface {
	Fetch(ctx context.Context, sources []source.Descriptor, out chan<- domain.RawCandidate) []domain.SourceOutcome
}

// CrawlDeps wires the crawl cycle's collaborators.
type CrawlDeps struct {
	Registry *source.Registry
	Fetcher  CandidateFetcher
	Store    ports.ArticleStore
	Workers  int
	Logger   *slog.Logger
}

// Crawl runs one fetch-and-ingest cycle across every registered source.
type Crawl struct {
	registry *source.Registry
	fetcher  CandidateFetcher
	store    ports.ArticleStore
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewCrawl constructs the crawl entry point.
func NewCrawl(deps CrawlDeps) *Crawl {
	workers := deps.Workers
	if workers < 1 {
		workers = defaultIngestWorkers
	}
	return &Crawl{
		registry: deps.Registry,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		workers:  workers,
		logger:   deps.Logger.With("component", "crawl"),
		now:      time.Now,
	}
}

// Run scans all sources and ingests the candidates they yield. A failing
// source lands in the summary's outcomes and never aborts the rest; a
// rejected candidate (unparseable link) is tallied and skipped. Cancellation
// stops in-flight work while keeping everything already ingested.
func (c *Crawl) Run(ctx context.Context) (domain.CrawlSummary, error) {
	summary := domain.CrawlSummary{StartedAt: c.now().UTC()}

	sources := c.registry.List(source.Filter{})
	summary.Sources = len(sources)
	if len(sources) == 0 {
		summary.FinishedAt = c.now().UTC()
		c.logger.Warn("no sources registered, nothing to crawl")
		return summary, nil
	}

	out := make(chan domain.RawCandidate, ingestBuffer)
	outcomes := make(chan []domain.SourceOutcome, 1)
	go func() {
		outcomes <- c.fetcher.Fetch(ctx, sources, out)
		close(out)
	}()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for cand := range out {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := c.store.Ingest(gctx, cand)

				mu.Lock()
				switch {
				case err != nil:
					summary.Rejected++
				case res == domain.IngestCreated:
					summary.Created++
				case res == domain.IngestUpdated:
					summary.Updated++
				default:
					summary.Unchanged++
				}
				mu.Unlock()

				if err != nil {
					c.logger.Warn("candidate rejected",
						"source", cand.SourceID, "link", cand.Link, "error", err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	// The fetch goroutine unblocks on cancellation, so this receive never
	// hangs even when the workers bailed early.
	summary.Outcomes = <-outcomes
	summary.FinishedAt = c.now().UTC()

	c.logger.Info("crawl cycle finished",
		"sources", summary.Sources,
		"failed_sources", summary.FailedSources(),
		"created", summary.Created,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"rejected", summary.Rejected,
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt))

	if err != nil {
		return summary, fmt.Errorf("crawl interrupted: %w", err)
	}
	return summary, nil
}
