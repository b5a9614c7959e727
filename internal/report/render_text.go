package report

import (
	"fmt"
	"strings"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

const (
	chartBarWidth = 40
	timeLayout    = "2006-01-02 15:04 MST"
	dateLayout    = "2006-01-02"
)

// renderText produces the structured plain-text artifact.
func renderText(rep domain.Report) []byte {
	var b strings.Builder

	title := fmt.Sprintf("%s BUSINESS INTELLIGENCE BRIEF", strings.ToUpper(string(rep.Cadence)))
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	fmt.Fprintf(&b, "Client:    %s (%s)\n", rep.ClientName, rep.ClientID)
	fmt.Fprintf(&b, "Window:    %s to %s\n", rep.From.Format(timeLayout), rep.To.Format(timeLayout))
	fmt.Fprintf(&b, "Generated: %s\n", rep.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Report ID: %s\n", rep.ID)
	if rep.Partial {
		fmt.Fprintf(&b, "Note:      partial report (%s)\n", rep.PartialReason)
	}
	b.WriteString("\n")

	heading(&b, "EXECUTIVE SUMMARY")
	if rep.Summary.Degraded {
		b.WriteString("[automated fallback summary]\n")
	} else if rep.Summary.ModelUsed != "" {
		fmt.Fprintf(&b, "[model: %s]\n", rep.Summary.ModelUsed)
	}
	b.WriteString(rep.Summary.Paragraph + "\n")
	for _, bullet := range rep.Summary.Bullets {
		fmt.Fprintf(&b, "  * %s\n", bullet)
	}
	b.WriteString("\n")

	heading(&b, "TRENDS")
	s := rep.Trends.Sentiment
	fmt.Fprintf(&b, "Sentiment: mean %+.2f (%d positive, %d negative, %d neutral)\n",
		s.Mean, s.Positive, s.Negative, s.Neutral)
	if len(rep.Trends.Topics) > 0 {
		parts := make([]string, len(rep.Trends.Topics))
		for i, tc := range rep.Trends.Topics {
			parts[i] = fmt.Sprintf("%s (%d)", tc.Topic, tc.Count)
		}
		fmt.Fprintf(&b, "Sectors:   %s\n", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
	for _, chart := range rep.Trends.Charts {
		writeTextChart(&b, rep.Trends, chart)
	}

	heading(&b, fmt.Sprintf("ARTICLES (%d)", len(rep.Articles)))
	for i, ref := range rep.Articles {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, ref.Title)
		details := []string{
			ref.SourceID,
			ref.PublishedAt.Format(dateLayout),
			fmt.Sprintf("relevance %.2f", ref.Score),
		}
		if ref.Sentiment != "" {
			details = append(details, ref.Sentiment)
		}
		if len(ref.Topics) > 0 {
			details = append(details, strings.Join(ref.Topics, "/"))
		}
		fmt.Fprintf(&b, "    %s\n", strings.Join(details, " | "))
		fmt.Fprintf(&b, "    %s\n", ref.URL)
	}

	return []byte(b.String())
}

func heading(b *strings.Builder, text string) {
	b.WriteString(text + "\n")
	b.WriteString(strings.Repeat("-", len(text)) + "\n")
}

type chartRow struct {
	label string
	value int
}

func writeTextChart(b *strings.Builder, trends domain.TrendsSection, chart domain.ChartKind) {
	rows := chartRows(trends, chart)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "%s\n", chartTitle(chart))
	maxValue := 0
	labelWidth := 0
	for _, r := range rows {
		if r.value > maxValue {
			maxValue = r.value
		}
		if len(r.label) > labelWidth {
			labelWidth = len(r.label)
		}
	}
	if maxValue == 0 {
		maxValue = 1
	}
	for _, r := range rows {
		bar := strings.Repeat("#", r.value*chartBarWidth/maxValue)
		fmt.Fprintf(b, "  %-*s %s %d\n", labelWidth, r.label, bar, r.value)
	}
	b.WriteString("\n")
}

// chartRows flattens one trend dimension into labeled values; every
// renderer draws from the same rows.
func chartRows(trends domain.TrendsSection, chart domain.ChartKind) []chartRow {
	switch chart {
	case domain.ChartKeywords:
		rows := make([]chartRow, 0, 8)
		for i, kc := range trends.Keywords {
			if i == 8 {
				break
			}
			rows = append(rows, chartRow{kc.Keyword, kc.Count})
		}
		return rows
	case domain.ChartSentiment:
		s := trends.Sentiment
		if s.Positive+s.Negative+s.Neutral == 0 {
			return nil
		}
		return []chartRow{
			{"positive", s.Positive},
			{"neutral", s.Neutral},
			{"negative", s.Negative},
		}
	case domain.ChartTopics:
		rows := make([]chartRow, 0, len(trends.Topics))
		for _, tc := range trends.Topics {
			rows = append(rows, chartRow{tc.Topic, tc.Count})
		}
		return rows
	}
	return nil
}

func chartTitle(chart domain.ChartKind) string {
	switch chart {
	case domain.ChartKeywords:
		return "KEYWORD FREQUENCY"
	case domain.ChartSentiment:
		return "SENTIMENT DISTRIBUTION"
	case domain.ChartTopics:
		return "SECTOR ACTIVITY"
	}
	return strings.ToUpper(string(chart))
}
