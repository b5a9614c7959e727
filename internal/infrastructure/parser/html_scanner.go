package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/scanner"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// Getter retrieves one URL under a politeness policy. Satisfied by the
// fetcher client.
type Getter interface {
	Fetch(ctx context.Context, url string, pol source.Politeness) ([]byte, error)
}

// HTMLScanner extracts candidates from listing pages by applying the
// source's selector rules to each matched item.
type HTMLScanner struct {
	getter Getter
	logger *slog.Logger
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires the polite getter used for page requests.
func NewHTMLScanner(getter Getter, logger *slog.Logger) *HTMLScanner {
	return &HTMLScanner{
		getter: getter,
		logger: logger.With("component", "html_scanner"),
	}
}

// Kind identifies the strategy inside the registry.
func (s *HTMLScanner) Kind() source.Kind {
	return source.KindHTML
}

// Scan walks the source's listing pages until MaxPages or an empty page and
// returns every extracted candidate, deduplicated by link within the scan.
func (s *HTMLScanner) Scan(ctx context.Context, src source.Descriptor) ([]domain.RawCandidate, error) {
	pages := src.MaxPages
	if pages < 1 {
		pages = 1
	}

	var collected []domain.RawCandidate
	seen := map[string]struct{}{}

	for page := 1; page <= pages; page++ {
		pageURL, err := buildPageURL(src.Endpoint, src.PageParam, page)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.ID, err)
		}

		body, err := s.getter.Fetch(ctx, pageURL, src.Politeness)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// Later pages failing does not void what earlier pages gave us.
			s.logger.Warn("pagination stopped early", "source", src.ID, "page", page, "error", err)
			break
		}

		items, err := s.extract(body, src)
		if err != nil {
			return nil, fmt.Errorf("source %s page %d: %w", src.ID, page, err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if _, ok := seen[item.Link]; ok {
				continue
			}
			seen[item.Link] = struct{}{}
			collected = append(collected, item)
		}
	}

	return collected, nil
}

func (s *HTMLScanner) extract(body []byte, src source.Descriptor) ([]domain.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w: %v", domain.ErrExtractionMismatch, err)
	}

	base, err := url.Parse(src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %w", src.Endpoint, err)
	}

	attr := src.Rules.LinkAttr
	if attr == "" {
		attr = "href"
	}

	fetchedAt := time.Now().UTC()
	var out []domain.RawCandidate

	doc.Find(src.Rules.Item).Each(func(i int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(src.Rules.Title).First().Text())
		href, hasLink := item.Find(src.Rules.Link).First().Attr(attr)
		if title == "" || !hasLink || strings.TrimSpace(href) == "" {
			s.logger.Debug("skipping item without title or link", "source", src.ID, "item", i)
			return
		}

		out = append(out, domain.RawCandidate{
			SourceID:    src.ID,
			FetchedAt:   fetchedAt,
			Title:       title,
			Body:        strings.TrimSpace(item.Find(src.Rules.Body).First().Text()),
			PublishedAt: parseItemDate(item, src.Rules),
			Link:        resolveLink(base, strings.TrimSpace(href)),
		})
	})

	return out, nil
}

func parseItemDate(item *goquery.Selection, rules source.Rules) time.Time {
	sel := item.Find(rules.Date).First()
	texts := make([]string, 0, 2)
	if dt, ok := sel.Attr("datetime"); ok {
		texts = append(texts, strings.TrimSpace(dt))
	}
	texts = append(texts, strings.TrimSpace(sel.Text()))

	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, layout := range rules.DateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}

func resolveLink(base *url.URL, href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}

func buildPageURL(endpoint, pageParam string, page int) (string, error) {
	if page <= 1 || pageParam == "" {
		return endpoint, nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint url %s: %w", endpoint, err)
	}
	query := parsed.Query()
	query.Set(pageParam, strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
