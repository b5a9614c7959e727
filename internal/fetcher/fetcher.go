package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/scanner"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// Fetcher drains a set of sources through a bounded worker pool, streaming
// extracted candidates to the caller. One invocation carries no state into
// the next.
type Fetcher struct {
	scanners *scanner.Registry
	workers  int
	logger   *slog.Logger
}

// New builds a fetcher running at most workers concurrent scans.
func New(scanners *scanner.Registry, workers int, logger *slog.Logger) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		scanners: scanners,
		workers:  workers,
		logger:   logger.With("component", "fetcher"),
	}
}

// Fetch scans every source and sends candidates to out. It returns one
// outcome per source, in input order; a failed source records its outcome
// and never aborts the others. The caller owns out and closes it after
// Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, sources []source.Descriptor, out chan<- domain.RawCandidate) []domain.SourceOutcome {
	outcomes := make([]domain.SourceOutcome, len(sources))

	workers := f.workers
	if workers > len(sources) {
		workers = len(sources)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = f.scanOne(ctx, sources[idx], out)
			}
		}()
	}

	for idx := range sources {
		if ctx.Err() != nil {
			outcomes[idx] = domain.SourceOutcome{
				SourceID: sources[idx].ID,
				Failure:  domain.FailureNetwork,
				Err:      ctx.Err(),
			}
			continue
		}
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (f *Fetcher) scanOne(ctx context.Context, src source.Descriptor, out chan<- domain.RawCandidate) domain.SourceOutcome {
	started := time.Now()
	outcome := domain.SourceOutcome{SourceID: src.ID}

	sc, err := f.scanners.Resolve(src.Kind)
	if err != nil {
		outcome.Failure = domain.FailurePermanent
		outcome.Err = err
		outcome.Elapsed = time.Since(started)
		f.logger.Error("source skipped", "source", src.ID, "error", err)
		return outcome
	}

	candidates, err := sc.Scan(ctx, src)
	outcome.Elapsed = time.Since(started)

	switch {
	case err != nil && errors.Is(err, domain.ErrExtractionMismatch):
		outcome.Failure = domain.FailureExtraction
		outcome.Err = err
		f.logger.Warn("extraction failed on fetched content", "source", src.ID, "error", err)
		return outcome
	case err != nil && domain.IsPermanent(err):
		outcome.Failure = domain.FailurePermanent
		outcome.Err = err
		f.logger.Warn("source failed permanently this cycle", "source", src.ID, "error", err)
		return outcome
	case err != nil:
		outcome.Failure = domain.FailureNetwork
		outcome.Err = err
		f.logger.Warn("source unreachable", "source", src.ID, "error", err)
		return outcome
	case len(candidates) == 0:
		// The page answered but the rules matched nothing: a stale
		// selector, not an outage.
		outcome.Failure = domain.FailureExtraction
		outcome.Err = domain.ErrExtractionMismatch
		f.logger.Warn("extraction rules matched nothing", "source", src.ID, "elapsed", outcome.Elapsed)
		return outcome
	}

	for _, c := range candidates {
		select {
		case out <- c:
			outcome.Candidates++
		case <-ctx.Done():
			outcome.Failure = domain.FailureNetwork
			outcome.Err = ctx.Err()
			return outcome
		}
	}

	f.logger.Debug("source scanned", "source", src.ID, "candidates", outcome.Candidates, "elapsed", outcome.Elapsed)
	return outcome
}
