package domain

import "time"

// ScoredArticle pairs a stored article with its relevance for one client.
type ScoredArticle struct {
	Article StoredArticle
	Score   float64
	Matched []string // keywords that contributed to the score
}

// TopicCount is one topic and the number of selected articles carrying it.
type TopicCount struct {
	Topic string
	Count int
}

// SentimentSummary aggregates per-article sentiment over a selection.
type SentimentSummary struct {
	Mean     float64
	Positive int
	Negative int
	Neutral  int
}

// AnalysisResult is everything the analyzer derived for one client window.
type AnalysisResult struct {
	ClientID  string
	From      time.Time
	To        time.Time
	Scanned   int // articles in the window before relevance filtering
	Selected  []ScoredArticle
	Topics    []TopicCount
	Keywords  []KeywordCount
	Sentiment SentimentSummary

	// Partial marks results where the enrichment path degraded and the
	// lexical fallback filled in; PartialReason says what failed.
	Partial       bool
	PartialReason string
}
