package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/scanner"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

var tagExpr = regexp.MustCompile(`<[^>]*>`)

// FeedScanner extracts candidates from RSS and Atom feeds.
type FeedScanner struct {
	getter Getter
	logger *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires the polite getter used for feed requests.
func NewFeedScanner(getter Getter, logger *slog.Logger) *FeedScanner {
	return &FeedScanner{
		getter: getter,
		logger: logger.With("component", "feed_scanner"),
	}
}

// Kind identifies the strategy inside the registry.
func (s *FeedScanner) Kind() source.Kind {
	return source.KindFeed
}

// Scan fetches the feed once and converts its items to candidates. Items
// without a title or link are skipped.
func (s *FeedScanner) Scan(ctx context.Context, src source.Descriptor) ([]domain.RawCandidate, error) {
	body, err := s.getter.Fetch(ctx, src.Endpoint, src.Politeness)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: parse feed: %w: %v", src.ID, domain.ErrExtractionMismatch, err)
	}

	fetchedAt := time.Now().UTC()
	out := make([]domain.RawCandidate, 0, len(feed.Items))
	for i, item := range feed.Items {
		title := stripTags(item.Title)
		if title == "" || item.Link == "" {
			s.logger.Debug("skipping feed item without title or link", "source", src.ID, "item", i)
			continue
		}

		content := item.Content
		if strings.TrimSpace(content) == "" {
			content = item.Description
		}

		out = append(out, domain.RawCandidate{
			SourceID:    src.ID,
			FetchedAt:   fetchedAt,
			Title:       title,
			Body:        stripTags(content),
			PublishedAt: itemTime(item),
			Link:        strings.TrimSpace(item.Link),
		})
	}

	return out, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func stripTags(s string) string {
	return strings.TrimSpace(tagExpr.ReplaceAllString(s, ""))
}
