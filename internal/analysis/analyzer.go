package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/completion"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
)

const (
	topKeywordCount    = 20
	articleKeywordCap  = 8
	assistArticleCap   = 10
	assistSnippetRunes = 200
)

const assistSystemPrompt = "You are a Gulf business intelligence analyst. Answer with JSON only."

// Analyzer scores a client's article window, derives keyword, topic and
// sentiment trends, and writes annotations back to the store. With a
// completer wired in it refines topics and sentiment through one LLM call;
// without one, or on any completion failure, the lexical values stand.
type Analyzer struct {
	store     ports.ArticleStore
	completer completion.Completer
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an analyzer. completer may be nil for lexical-only analysis.
func New(store ports.ArticleStore, completer completion.Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		store:     store,
		completer: completer,
		logger:    logger.With("component", "analyzer"),
		now:       time.Now,
	}
}

// derivation holds the per-article lexical facts reused by the aggregate
// result and the annotation write-back.
type derivation struct {
	topics    []string
	sentiment float64
	label     string
	keywords  []domain.KeywordCount
}

// Analyze ranks the window [now-Lookback, now] for the client and derives
// trends over the selected articles. Run twice with the same inputs it
// produces identical ordering and truncation.
func (a *Analyzer) Analyze(ctx context.Context, profile domain.ClientProfile, policy domain.ReportPolicy, now time.Time) (domain.AnalysisResult, error) {
	if now.IsZero() {
		now = a.now()
	}
	from := now.Add(-time.Duration(policy.Lookback) * 24 * time.Hour)

	window, err := a.store.Window(ctx, from, now)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("load article window: %w", err)
	}

	selected := make([]domain.ScoredArticle, 0, len(window))
	for _, article := range window {
		score, matched := relevanceOf(article, profile.Keywords)
		// Articles with no keyword evidence never make a report, whatever
		// the configured threshold.
		if len(matched) == 0 || score < policy.MinRelevance {
			continue
		}
		selected = append(selected, domain.ScoredArticle{Article: article, Score: score, Matched: matched})
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		ti, tj := selected[i].Article.EffectiveTime(), selected[j].Article.EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return selected[i].Article.Fingerprint < selected[j].Article.Fingerprint
	})
	if policy.ArticleLimit > 0 && len(selected) > policy.ArticleLimit {
		selected = selected[:policy.ArticleLimit]
	}

	result := domain.AnalysisResult{
		ClientID: profile.ID,
		From:     from,
		To:       now,
		Scanned:  len(window),
		Selected: selected,
	}

	texts := make([]string, len(selected))
	derivations := make([]derivation, len(selected))
	perArticleTopics := make([][]string, len(selected))
	var sentimentSum float64
	for i, s := range selected {
		text := s.Article.Title + " " + s.Article.Body
		texts[i] = text
		score := sentimentScore(text)
		derivations[i] = derivation{
			topics:    topicsOf(text),
			sentiment: score,
			label:     sentimentLabel(score),
			keywords:  keywordFrequencies([]string{text}, articleKeywordCap),
		}
		perArticleTopics[i] = derivations[i].topics
		sentimentSum += score
		switch derivations[i].label {
		case "positive":
			result.Sentiment.Positive++
		case "negative":
			result.Sentiment.Negative++
		default:
			result.Sentiment.Neutral++
		}
	}
	if len(selected) > 0 {
		result.Sentiment.Mean = sentimentSum / float64(len(selected))
	}
	result.Keywords = keywordFrequencies(texts, topKeywordCount)
	result.Topics = topicCounts(perArticleTopics)

	if a.completer != nil && len(selected) > 0 {
		a.assist(ctx, profile, &result)
	}

	a.writeAnnotations(ctx, profile.ID, selected, derivations, now)

	return result, nil
}

// relevanceOf scores one article for a keyword list: occurrences in the
// title weigh 3, in the body 1, normalized against four hits per keyword
// and capped at 1.
func relevanceOf(article domain.StoredArticle, keywords []string) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}
	title := domain.NormalizeBody(article.Title)
	body := domain.NormalizeBody(article.Body)

	raw := 0
	var matched []string
	for _, keyword := range keywords {
		needle := domain.NormalizeBody(keyword)
		if needle == "" {
			continue
		}
		hits := 3*strings.Count(title, needle) + strings.Count(body, needle)
		if hits > 0 {
			raw += hits
			matched = append(matched, keyword)
		}
	}
	if raw == 0 {
		return 0, nil
	}
	score := float64(raw) / float64(4*len(keywords))
	if score > 1 {
		score = 1
	}
	return score, matched
}

// assist refines topics and aggregate sentiment with one completion call.
// Failures leave the lexical values in place and mark the result partial.
func (a *Analyzer) assist(ctx context.Context, profile domain.ClientProfile, result *domain.AnalysisResult) {
	resp, err := a.completer.Complete(ctx, completion.Request{
		System:      assistSystemPrompt,
		Prompt:      assistPrompt(profile, result.Selected),
		MaxTokens:   400,
		Temperature: 0.2,
	})
	if err != nil {
		a.logger.Warn("llm assist failed, keeping lexical analysis", "client", profile.ID, "error", err)
		result.Partial = true
		result.PartialReason = fmt.Sprintf("llm assist: %v", err)
		return
	}
	payload, err := parseAssist(resp.Text)
	if err != nil {
		a.logger.Warn("llm assist reply unusable, keeping lexical analysis", "client", profile.ID, "error", err)
		result.Partial = true
		result.PartialReason = fmt.Sprintf("llm assist: %v", err)
		return
	}
	result.Topics = preferTopics(result.Topics, payload.Topics)
	if payload.Sentiment != nil {
		result.Sentiment.Mean = *payload.Sentiment
	}
}

func assistPrompt(profile domain.ClientProfile, selected []domain.ScoredArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client %q follows: %s.\n", profile.Name, strings.Join(profile.Keywords, ", "))
	b.WriteString("Articles:\n")
	for i, s := range selected {
		if i == assistArticleCap {
			break
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, s.Article.Title, snippet(s.Article.Body, assistSnippetRunes))
	}
	b.WriteString("\nRespond with JSON {\"topics\": [\"sector\", ...], \"sentiment\": <number in [-1,1]>}.")
	b.WriteString(" Sectors: energy, finance, construction, aviation, technology, policy.")
	return b.String()
}

type assistPayload struct {
	Topics    []string `json:"topics"`
	Sentiment *float64 `json:"sentiment"`
}

// parseAssist extracts the JSON payload, tolerating markdown code fences.
func parseAssist(text string) (assistPayload, error) {
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

	var payload assistPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return assistPayload{}, fmt.Errorf("parse assist reply: %w", err)
	}
	if payload.Sentiment != nil && (*payload.Sentiment < -1 || *payload.Sentiment > 1) {
		return assistPayload{}, fmt.Errorf("assist sentiment %v out of range", *payload.Sentiment)
	}
	return payload, nil
}

// preferTopics moves LLM-named topics to the front, keeping lexical counts.
// Names the lexical pass never saw are dropped rather than given made-up
// counts.
func preferTopics(lexical []domain.TopicCount, preferred []string) []domain.TopicCount {
	if len(preferred) == 0 {
		return lexical
	}
	byName := make(map[string]domain.TopicCount, len(lexical))
	for _, tc := range lexical {
		byName[tc.Topic] = tc
	}
	out := make([]domain.TopicCount, 0, len(lexical))
	taken := map[string]bool{}
	for _, name := range preferred {
		name = strings.ToLower(strings.TrimSpace(name))
		if tc, ok := byName[name]; ok && !taken[name] {
			out = append(out, tc)
			taken[name] = true
		}
	}
	for _, tc := range lexical {
		if !taken[tc.Topic] {
			out = append(out, tc)
		}
	}
	return out
}

// writeAnnotations persists per-article derivations, clearing any stale
// flag, and attaches them to the selection so report composition can cite
// them. Store failures are logged; annotation is enrichment, not a
// precondition for the analysis result.
func (a *Analyzer) writeAnnotations(ctx context.Context, clientID string, selected []domain.ScoredArticle, derivations []derivation, now time.Time) {
	for i, s := range selected {
		ann := domain.Annotations{
			Keywords:          derivations[i].keywords,
			Sentiment:         derivations[i].sentiment,
			SentimentLabel:    derivations[i].label,
			Topics:            derivations[i].topics,
			RelevanceByClient: map[string]float64{clientID: s.Score},
			AnalyzedAt:        now,
		}
		selected[i].Article.Annotations = &ann
		if err := a.store.Annotate(ctx, s.Article.Fingerprint, ann); err != nil {
			a.logger.Warn("annotate failed", "fingerprint", s.Article.Fingerprint, "error", err)
		}
	}
}

func snippet(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
