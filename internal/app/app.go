// Package app wires configuration into the runnable application: store and
// cache backends, the resilient completion client, the crawl pipeline and the
// report generator.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/analysis"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/completion"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/config"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/fetcher"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/infrastructure/artifacts"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/infrastructure/cache"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/infrastructure/llm"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/infrastructure/parser"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/infrastructure/storage"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/logging"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/ports"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/report"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/scanner"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/store"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/usecase"
)

// Application owns the wired use cases and the resources they hold open.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	crawl   *usecase.Crawl
	reports *usecase.Reports

	db    *sql.DB
	redis *cache.Redis
}

// New builds the application from validated configuration. Infrastructure
// that cannot be reached at startup (Postgres) fails construction; the cache
// degrades instead.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	articleStore, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	backend := a.buildCache(ctx)
	completer := a.buildCompleter(backend)

	registry, err := source.NewRegistry(sourceDescriptors(cfg.Sources))
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	profiles, err := clientProfiles(cfg.Clients)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}

	var getter parser.Getter = fetcher.NewClient(
		&http.Client{Timeout: cfg.Crawl.RequestTimeout.Std()},
		source.Politeness{
			MinInterval: cfg.Crawl.MinInterval.Std(),
			Timeout:     cfg.Crawl.RequestTimeout.Std(),
			MaxRetries:  cfg.Crawl.MaxRetries,
		},
		baseLogger,
	)
	if ttl := cfg.Cache.PageTTL.Std(); ttl > 0 {
		getter = fetcher.NewCachedGetter(getter, backend, ttl, baseLogger)
	}
	scanners := scanner.NewRegistry()
	scanners.Register(parser.NewHTMLScanner(getter, baseLogger))
	scanners.Register(parser.NewFeedScanner(getter, baseLogger))

	a.crawl = usecase.NewCrawl(usecase.CrawlDeps{
		Registry: registry,
		Fetcher:  fetcher.New(scanners, cfg.Crawl.Concurrency, baseLogger),
		Store:    articleStore,
		Workers:  cfg.Crawl.Concurrency,
		Logger:   baseLogger,
	})

	var assist completion.Completer
	if cfg.LLM.Assist {
		assist = completer
	}
	a.reports = usecase.NewReports(usecase.ReportsDeps{
		Profiles: profiles,
		Analyzer: analysis.New(articleStore, assist, baseLogger),
		Composer: report.NewComposer(completer, reportFormats(cfg.Reports.Formats), baseLogger),
		Sink:     artifacts.NewFSSink(cfg.Reports.OutputDir, baseLogger),
		Logger:   baseLogger,
	})

	return a, nil
}

// Crawl runs one fetch-and-ingest cycle.
func (a *Application) Crawl(ctx context.Context) (domain.CrawlSummary, error) {
	return a.crawl.Run(ctx)
}

// GenerateReport produces one report for the client at the given cadence.
func (a *Application) GenerateReport(ctx context.Context, clientID, cadence string) (domain.Report, error) {
	parsed, err := domain.ParseCadence(cadence)
	if err != nil {
		return domain.Report{}, err
	}
	return a.reports.Generate(ctx, clientID, parsed)
}

// Close releases held connections. Safe on a partially constructed app.
func (a *Application) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildStore selects Postgres when a DSN is configured, the in-process store
// otherwise. Schema setup runs on every start and is idempotent.
func (a *Application) buildStore(ctx context.Context) (ports.ArticleStore, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("using in-memory article store")
		return store.NewMemStore(), nil
	}

	db, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	pg := storage.NewPostgresStore(db, a.logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return pg, nil
}

// buildCache selects the shared cache backend serving both prompt and page
// entries: Redis when addressed, the bounded in-process map otherwise.
func (a *Application) buildCache(ctx context.Context) ports.Cache {
	if addr := a.cfg.Cache.RedisAddr; addr != "" {
		redis := cache.NewRedis(addr)
		if err := redis.Ping(ctx); err != nil {
			// Cache errors degrade to misses downstream, so a dead Redis
			// costs throughput, not reports.
			a.logger.Warn("redis unreachable at startup", "addr", addr, "error", err)
		}
		a.redis = redis
		return redis
	}
	return cache.NewMemory(a.cfg.Cache.MemoryEntries)
}

// buildCompleter assembles the retrying completion client behind the prompt
// cache. Without an API key the application runs model-free and every summary
// uses the deterministic fallback.
func (a *Application) buildCompleter(backend ports.Cache) completion.Completer {
	if a.cfg.LLM.APIKey == "" {
		a.logger.Warn("no llm api key configured, summaries use the fallback path")
		return nil
	}

	client := completion.New(
		llm.NewOpenAITransport(a.cfg.LLM),
		completion.Policy{
			PrimaryModel:  a.cfg.LLM.PrimaryModel,
			FallbackModel: a.cfg.LLM.FallbackModel,
			MaxAttempts:   a.cfg.LLM.MaxAttempts,
			BaseDelay:     a.cfg.LLM.BaseDelay.Std(),
			MaxDelay:      a.cfg.LLM.MaxDelay.Std(),
			Jitter:        a.cfg.LLM.Jitter,
		},
		a.logger,
	)
	return completion.NewCached(client, backend, a.cfg.Cache.PromptTTL.Std(), a.logger)
}

func sourceDescriptors(configs []config.SourceConfig) []source.Descriptor {
	descriptors := make([]source.Descriptor, 0, len(configs))
	for _, s := range configs {
		descriptors = append(descriptors, source.Descriptor{
			ID:       s.ID,
			Name:     s.Name,
			Kind:     source.Kind(s.Kind),
			Endpoint: s.Endpoint,
			Language: s.Language,
			Country:  s.Country,
			Rules: source.Rules{
				Item:        s.Rules.Item,
				Title:       s.Rules.Title,
				Body:        s.Rules.Body,
				Link:        s.Rules.Link,
				LinkAttr:    s.Rules.LinkAttr,
				Date:        s.Rules.Date,
				DateLayouts: s.Rules.DateLayouts,
			},
			Politeness: source.Politeness{
				MinInterval: s.Politeness.MinInterval.Std(),
				Timeout:     s.Politeness.Timeout.Std(),
				MaxRetries:  s.Politeness.MaxRetries,
			},
			MaxPages:  s.MaxPages,
			PageParam: s.PageParam,
		})
	}
	return descriptors
}

func clientProfiles(configs []config.ClientConfig) ([]domain.ClientProfile, error) {
	profiles := make([]domain.ClientProfile, 0, len(configs))
	for _, c := range configs {
		profile := domain.ClientProfile{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Keywords:    c.Keywords,
		}
		for _, r := range c.Reports {
			cadence, err := domain.ParseCadence(r.Cadence)
			if err != nil {
				return nil, fmt.Errorf("client %q: %w", c.ID, err)
			}
			charts := make([]domain.ChartKind, 0, len(r.Charts))
			for _, chart := range r.Charts {
				kind, err := domain.ParseChartKind(chart)
				if err != nil {
					return nil, fmt.Errorf("client %q: %w", c.ID, err)
				}
				charts = append(charts, kind)
			}
			profile.Policies = append(profile.Policies, domain.ReportPolicy{
				Cadence:      cadence,
				Lookback:     r.LookbackDays,
				ArticleLimit: r.ArticleLimit,
				MinRelevance: r.MinRelevance,
				Charts:       charts,
			})
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func reportFormats(names []string) []domain.Format {
	formats := make([]domain.Format, 0, len(names))
	for _, name := range names {
		formats = append(formats, domain.Format(name))
	}
	return formats
}
