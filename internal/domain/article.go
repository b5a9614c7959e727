package domain

import "time"

// RawCandidate is one extracted article as it left a source scanner,
// before canonicalization and deduplication.
type RawCandidate struct {
	SourceID    string
	FetchedAt   time.Time
	Title       string
	Body        string
	PublishedAt time.Time
	Link        string
}

// KeywordCount pairs a keyword with its occurrence count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Annotations carries analysis output attached to a stored article. It is
// serialized as JSON when the store is database-backed.
type Annotations struct {
	Keywords          []KeywordCount     `json:"keywords,omitempty"`
	Sentiment         float64            `json:"sentiment"`
	SentimentLabel    string             `json:"sentimentLabel,omitempty"`
	Topics            []string           `json:"topics,omitempty"`
	RelevanceByClient map[string]float64 `json:"relevanceByClient,omitempty"`
	AnalyzedAt        time.Time          `json:"analyzedAt"`

	// Stale marks annotations derived from a body that has since been
	// republished with edits; the analyzer re-derives them on its next pass.
	Stale bool `json:"stale,omitempty"`
}

// StoredArticle is the deduplicated form of an article, keyed by fingerprint.
type StoredArticle struct {
	Fingerprint  Fingerprint
	SourceID     string
	Title        string
	Body         string
	CanonicalURL string
	BodyHash     string
	PublishedAt  time.Time
	FirstSeen    time.Time
	LastSeen     time.Time
	Annotations  *Annotations
}

// EffectiveTime orders articles by publication date, falling back to the
// crawl sighting when the source provided no date.
func (a StoredArticle) EffectiveTime() time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.LastSeen
}

// IngestResult describes what the content store did with one candidate.
type IngestResult string

const (
	IngestCreated   IngestResult = "created"
	IngestUpdated   IngestResult = "updated"
	IngestUnchanged IngestResult = "unchanged"
)
