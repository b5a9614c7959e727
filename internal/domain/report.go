package domain

import "time"

// Format names one rendered artifact flavor.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ArticleRef is the compact form of an article cited inside a report.
type ArticleRef struct {
	Fingerprint Fingerprint
	Title       string
	SourceID    string
	URL         string
	PublishedAt time.Time
	Score       float64
	Sentiment   string
	Topics      []string
}

// SummarySection is the report's executive summary. Degraded marks a
// deterministic fallback produced without the language model.
type SummarySection struct {
	Paragraph string
	Bullets   []string
	ModelUsed string
	Degraded  bool
}

// TrendsSection aggregates the window's topics, keywords and sentiment.
// Charts lists which of them the renderers draw for this report.
type TrendsSection struct {
	Topics    []TopicCount
	Keywords  []KeywordCount
	Sentiment SentimentSummary
	Charts    []ChartKind
}

// Report is one generated client report before rendering.
type Report struct {
	ID          string
	ClientID    string
	ClientName  string
	Cadence     Cadence
	GeneratedAt time.Time
	From        time.Time
	To          time.Time

	Summary  SummarySection
	Trends   TrendsSection
	Articles []ArticleRef

	// Partial carries through from analysis: the report was produced, but
	// with degraded enrichment.
	Partial       bool
	PartialReason string
}

// Artifact is one rendered report in a concrete format.
type Artifact struct {
	ReportID string
	ClientID string
	Format   Format
	Filename string
	Content  []byte
}
