package domain

import "time"

// FailureKind classifies why a source produced nothing in a crawl cycle.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureNetwork    FailureKind = "network"
	FailurePermanent  FailureKind = "permanent"
	FailureExtraction FailureKind = "extraction_mismatch"
)

// SourceOutcome records how one source fared during a crawl cycle.
type SourceOutcome struct {
	SourceID   string
	Candidates int
	Failure    FailureKind
	Err        error
	Elapsed    time.Duration
}

// Failed reports whether the source contributed nothing usable.
func (o SourceOutcome) Failed() bool {
	return o.Failure != FailureNone
}

// CrawlSummary tallies one whole crawl cycle across all sources.
type CrawlSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    int
	Outcomes   []SourceOutcome
	Created    int
	Updated    int
	Unchanged  int
	Rejected   int // candidates dropped for unparseable links or empty bodies
}

// FailedSources counts sources that ended the cycle in a failure state.
func (s CrawlSummary) FailedSources() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}
