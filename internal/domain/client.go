package domain

import "fmt"

// Cadence is the reporting rhythm a client subscribes to.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// ParseCadence validates a configured cadence string.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return Cadence(s), nil
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

// ChartKind names one trend visualization a report can include.
type ChartKind string

const (
	ChartKeywords  ChartKind = "keywords"
	ChartSentiment ChartKind = "sentiment"
	ChartTopics    ChartKind = "topics"
)

// ParseChartKind validates a configured chart name.
func ParseChartKind(s string) (ChartKind, error) {
	switch ChartKind(s) {
	case ChartKeywords, ChartSentiment, ChartTopics:
		return ChartKind(s), nil
	}
	return "", fmt.Errorf("unknown chart %q", s)
}

// ReportPolicy fixes how much material one report may draw on and which
// charts it renders.
type ReportPolicy struct {
	Cadence      Cadence
	Lookback     int // days of articles a report window covers
	ArticleLimit int // hard cap on articles per report
	MinRelevance float64
	Charts       []ChartKind
}

// ClientProfile describes one subscribing client and the interests that
// drive relevance scoring for its reports.
type ClientProfile struct {
	ID          string
	Name        string
	Description string
	Keywords    []string
	Policies    []ReportPolicy
}

// PolicyFor returns the policy matching the requested cadence.
func (p ClientProfile) PolicyFor(c Cadence) (ReportPolicy, bool) {
	for _, pol := range p.Policies {
		if pol.Cadence == c {
			return pol, true
		}
	}
	return ReportPolicy{}, false
}
