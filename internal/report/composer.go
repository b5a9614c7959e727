package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/completion"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

const (
	summarySystemPrompt = "You are a Gulf business intelligence editor. Answer with JSON only."
	summaryArticleCap   = 8
	summarySnippetRunes = 160
)

// Composer turns an analysis result into a Report and one rendered artifact
// per configured format. All formats consume the same section values.
type Composer struct {
	completer completion.Completer
	formats   []domain.Format
	logger    *slog.Logger
	newID     func() string
}

// NewComposer builds a composer. completer may be nil, in which case every
// summary uses the deterministic fallback without marking reports partial.
func NewComposer(completer completion.Completer, formats []domain.Format, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		completer: completer,
		formats:   formats,
		logger:    logger.With("component", "composer"),
		newID:     uuid.NewString,
	}
}

// Compose assembles the format-independent sections first, then renders the
// artifacts. A terminal completion failure degrades the summary and marks
// the report partial; it never fails composition. A render failure does.
func (c *Composer) Compose(ctx context.Context, profile domain.ClientProfile, policy domain.ReportPolicy, result domain.AnalysisResult, now time.Time) (domain.Report, []domain.Artifact, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rep := domain.Report{
		ID:          c.newID(),
		ClientID:    profile.ID,
		ClientName:  profile.Name,
		Cadence:     policy.Cadence,
		GeneratedAt: now,
		From:        result.From,
		To:          result.To,
		Trends: domain.TrendsSection{
			Topics:    result.Topics,
			Keywords:  result.Keywords,
			Sentiment: result.Sentiment,
			Charts:    chartSet(policy.Charts),
		},
		Articles:      articleRefs(result.Selected),
		Partial:       result.Partial,
		PartialReason: result.PartialReason,
	}

	summary, degradedReason := c.summarize(ctx, profile, result)
	rep.Summary = summary
	if degradedReason != "" && !rep.Partial {
		rep.Partial = true
		rep.PartialReason = degradedReason
	}

	artifacts := make([]domain.Artifact, 0, len(c.formats))
	for _, format := range c.formats {
		content, err := render(rep, format)
		if err != nil {
			return domain.Report{}, nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts = append(artifacts, domain.Artifact{
			ReportID: rep.ID,
			ClientID: rep.ClientID,
			Format:   format,
			Filename: artifactFilename(profile.ID, policy.Cadence, now, format),
			Content:  content,
		})
	}
	return rep, artifacts, nil
}

func render(rep domain.Report, format domain.Format) ([]byte, error) {
	switch format {
	case domain.FormatText:
		return renderText(rep), nil
	case domain.FormatHTML:
		return renderHTML(rep)
	case domain.FormatPDF:
		return renderPDF(rep)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// summarize produces the executive summary. The second return value names
// the failure when the model path degraded; it is empty when the fallback
// is the configured behavior.
func (c *Composer) summarize(ctx context.Context, profile domain.ClientProfile, result domain.AnalysisResult) (domain.SummarySection, string) {
	if c.completer == nil {
		return fallbackSummary(result), ""
	}

	resp, err := c.completer.Complete(ctx, completion.Request{
		System:      summarySystemPrompt,
		Prompt:      summaryPrompt(profile, result),
		MaxTokens:   600,
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Warn("summary completion failed, using fallback", "client", profile.ID, "error", err)
		return fallbackSummary(result), fmt.Sprintf("executive summary: %v", err)
	}
	payload, err := parseSummary(resp.Text)
	if err != nil {
		c.logger.Warn("summary reply unusable, using fallback", "client", profile.ID, "error", err)
		return fallbackSummary(result), fmt.Sprintf("executive summary: %v", err)
	}
	return domain.SummarySection{
		Paragraph: payload.Paragraph,
		Bullets:   payload.Bullets,
		ModelUsed: resp.Model,
	}, ""
}

func summaryPrompt(profile domain.ClientProfile, result domain.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary for %s", profile.Name)
	if profile.Description != "" {
		fmt.Fprintf(&b, " (%s)", profile.Description)
	}
	fmt.Fprintf(&b, ", covering %s to %s.\n",
		result.From.Format("2 January 2006"), result.To.Format("2 January 2006"))
	fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(profile.Keywords, ", "))
	if len(result.Topics) > 0 {
		names := make([]string, len(result.Topics))
		for i, tc := range result.Topics {
			names[i] = fmt.Sprintf("%s (%d)", tc.Topic, tc.Count)
		}
		fmt.Fprintf(&b, "Active sectors: %s.\n", strings.Join(names, ", "))
	}
	b.WriteString("Articles:\n")
	for i, s := range result.Selected {
		if i == summaryArticleCap {
			break
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, s.Article.Title, summarySnippet(s.Article.Body))
	}
	b.WriteString("\nRespond with JSON {\"paragraph\": \"...\", \"bullets\": [\"...\"]}.")
	b.WriteString(" The paragraph summarizes the period; the bullets are actionable recommendations.")
	return b.String()
}

type summaryPayload struct {
	Paragraph string   `json:"paragraph"`
	Bullets   []string `json:"bullets"`
}

// parseSummary extracts the JSON payload, tolerating markdown code fences.
func parseSummary(text string) (summaryPayload, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return summaryPayload{}, fmt.Errorf("parse summary reply: %w", err)
	}
	if strings.TrimSpace(payload.Paragraph) == "" {
		return summaryPayload{}, fmt.Errorf("summary reply has no paragraph")
	}
	return payload, nil
}

// fallbackSummary is the deterministic summary used when the language model
// is unavailable or not configured. It is clearly labeled as automated.
func fallbackSummary(result domain.AnalysisResult) domain.SummarySection {
	paragraph := fmt.Sprintf(
		"Automated digest: %d of %d scanned articles matched this client's interests between %s and %s.",
		len(result.Selected), result.Scanned,
		result.From.Format("2 January 2006"), result.To.Format("2 January 2006"))

	bullets := make([]string, 0, 6)
	for i, kc := range result.Keywords {
		if i == 3 {
			break
		}
		bullets = append(bullets, fmt.Sprintf("Frequent keyword: %s (%d mentions)", kc.Keyword, kc.Count))
	}
	for i, s := range result.Selected {
		if i == 3 {
			break
		}
		bullets = append(bullets, fmt.Sprintf("Top story: %s (relevance %.2f)", s.Article.Title, s.Score))
	}
	return domain.SummarySection{Paragraph: paragraph, Bullets: bullets, Degraded: true}
}

func articleRefs(selected []domain.ScoredArticle) []domain.ArticleRef {
	refs := make([]domain.ArticleRef, 0, len(selected))
	for _, s := range selected {
		ref := domain.ArticleRef{
			Fingerprint: s.Article.Fingerprint,
			Title:       s.Article.Title,
			SourceID:    s.Article.SourceID,
			URL:         s.Article.CanonicalURL,
			PublishedAt: s.Article.EffectiveTime(),
			Score:       s.Score,
		}
		if ann := s.Article.Annotations; ann != nil {
			ref.Sentiment = ann.SentimentLabel
			ref.Topics = ann.Topics
		}
		refs = append(refs, ref)
	}
	return refs
}

// chartSet resolves the configured charts; an empty policy means all of
// them, in a fixed order.
func chartSet(configured []domain.ChartKind) []domain.ChartKind {
	if len(configured) == 0 {
		return []domain.ChartKind{domain.ChartKeywords, domain.ChartSentiment, domain.ChartTopics}
	}
	out := make([]domain.ChartKind, len(configured))
	copy(out, configured)
	return out
}

func artifactFilename(clientID string, cadence domain.Cadence, ts time.Time, format domain.Format) string {
	return fmt.Sprintf("%s-%s-%s.%s", clientID, cadence, ts.UTC().Format("20060102-150405"), extension(format))
}

func extension(format domain.Format) string {
	switch format {
	case domain.FormatText:
		return "txt"
	case domain.FormatHTML:
		return "html"
	case domain.FormatPDF:
		return "pdf"
	}
	return string(format)
}

func summarySnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= summarySnippetRunes {
		return s
	}
	return string(runes[:summarySnippetRunes]) + "..."
}
