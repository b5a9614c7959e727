package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "GCCINTEL_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	llmAPIKeyEnv    = "LLM_API_KEY"
	llmEndpointEnv  = "LLM_ENDPOINT"
	llmModelEnv     = "LLM_PRIMARY_MODEL"
	redisAddrEnv    = "REDIS_ADDR"
	reportOutputEnv = "REPORT_OUTPUT_DIR"
)

// Duration wraps time.Duration so YAML values like "500ms" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	LLM      LLMConfig      `yaml:"llm"`
	Reports  ReportsConfig  `yaml:"reports"`
	Sources  []SourceConfig `yaml:"sources"`
	Clients  []ClientConfig `yaml:"clients"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CrawlConfig bounds the fetch pool and supplies politeness defaults for
// sources that do not set their own.
type CrawlConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	RequestTimeout Duration `yaml:"requestTimeout"`
	MinInterval    Duration `yaml:"minInterval"`
	MaxRetries     int      `yaml:"maxRetries"`
}

// DatabaseConfig describes the optional Postgres store. An empty DSN keeps
// articles in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CacheConfig describes the optional Redis cache. An empty address falls
// back to the in-process cache. PromptTTL bounds completion reuse, PageTTL
// bounds fetched-page reuse; a zero PageTTL disables page caching.
type CacheConfig struct {
	RedisAddr     string   `yaml:"redisAddr"`
	PromptTTL     Duration `yaml:"promptTtl"`
	PageTTL       Duration `yaml:"pageTtl"`
	MemoryEntries int      `yaml:"memoryEntries"`
}

// LLMConfig defines how to contact the completion service and how hard the
// resilient client tries before giving up.
type LLMConfig struct {
	Endpoint      string   `yaml:"endpoint"`
	APIKey        string   `yaml:"apiKey"`
	PrimaryModel  string   `yaml:"primaryModel"`
	FallbackModel string   `yaml:"fallbackModel"`
	MaxAttempts   int      `yaml:"maxAttempts"`
	BaseDelay     Duration `yaml:"baseDelay"`
	MaxDelay      Duration `yaml:"maxDelay"`
	Jitter        float64  `yaml:"jitter"`
	Timeout       Duration `yaml:"timeout"`

	// Assist enables the LLM-assisted analysis path; reports always use
	// the completion service for summaries regardless.
	Assist bool `yaml:"assist"`
}

// ReportsConfig fixes where artifacts land and which formats are rendered.
type ReportsConfig struct {
	OutputDir string   `yaml:"outputDir"`
	Formats   []string `yaml:"formats"`
}

// SourceConfig describes a single content source.
type SourceConfig struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	Kind       string           `yaml:"kind"`
	Endpoint   string           `yaml:"endpoint"`
	Language   string           `yaml:"language"`
	Country    string           `yaml:"country"`
	Rules      RulesConfig      `yaml:"rules"`
	Politeness PolitenessConfig `yaml:"politeness"`
	MaxPages   int              `yaml:"maxPages"`
	PageParam  string           `yaml:"pageParam"`
}

// RulesConfig maps document regions to article fields for html sources.
type RulesConfig struct {
	Item        string   `yaml:"item"`
	Title       string   `yaml:"title"`
	Body        string   `yaml:"body"`
	Link        string   `yaml:"link"`
	LinkAttr    string   `yaml:"linkAttr"`
	Date        string   `yaml:"date"`
	DateLayouts []string `yaml:"dateLayouts"`
}

// PolitenessConfig bounds request pacing against one origin.
type PolitenessConfig struct {
	MinInterval Duration `yaml:"minInterval"`
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"maxRetries"`
}

// ClientConfig describes one subscribing client.
type ClientConfig struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Keywords    []string       `yaml:"keywords"`
	Reports     []ReportConfig `yaml:"reports"`
}

// ReportConfig is one cadence entry in a client's report table. An empty
// chart set means every chart.
type ReportConfig struct {
	Cadence      string   `yaml:"cadence"`
	LookbackDays int      `yaml:"lookbackDays"`
	ArticleLimit int      `yaml:"articleLimit"`
	MinRelevance float64  `yaml:"minRelevance"`
	Charts       []string `yaml:"charts"`
}

// Load reads YAML configuration, applies environment overrides and validates
// the result. Path may be empty, in which case the GCCINTEL_CONFIG variable
// and finally the built-in defaults are used. Any invalid field fails the
// load; nothing is deferred to fetch or report time.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.PrimaryModel = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv(reportOutputEnv); v != "" {
		c.Reports.OutputDir = v
	}
}

func (c Config) validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}

	if c.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl: concurrency must be at least 1")
	}
	if c.Crawl.RequestTimeout <= 0 {
		return fmt.Errorf("crawl: requestTimeout must be positive")
	}
	if c.Crawl.MinInterval < 0 || c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl: politeness defaults must not be negative")
	}

	if c.Cache.PromptTTL < 0 || c.Cache.PageTTL < 0 {
		return fmt.Errorf("cache: ttls must not be negative")
	}
	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("cache: memoryEntries must not be negative")
	}

	if err := c.LLM.validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Reports.validate(); err != nil {
		return fmt.Errorf("reports: %w", err)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("sources: at least one source is required")
	}
	seenSources := map[string]bool{}
	for i, s := range c.Sources {
		if err := s.validate(); err != nil {
			return fmt.Errorf("sources[%d] (%s): %w", i, s.ID, err)
		}
		if seenSources[s.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		seenSources[s.ID] = true
	}

	if len(c.Clients) == 0 {
		return fmt.Errorf("clients: at least one client is required")
	}
	seenClients := map[string]bool{}
	for i, cl := range c.Clients {
		if err := cl.validate(); err != nil {
			return fmt.Errorf("clients[%d] (%s): %w", i, cl.ID, err)
		}
		if seenClients[cl.ID] {
			return fmt.Errorf("clients[%d]: duplicate id %q", i, cl.ID)
		}
		seenClients[cl.ID] = true
	}
	return nil
}

func (l LLMConfig) validate() error {
	if l.Endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	u, err := url.Parse(l.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute http(s) URL", l.Endpoint)
	}
	if l.PrimaryModel == "" {
		return fmt.Errorf("missing primaryModel")
	}
	if l.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1")
	}
	if l.BaseDelay <= 0 {
		return fmt.Errorf("baseDelay must be positive")
	}
	if l.Jitter < 0 || l.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1)")
	}
	return nil
}

func (r ReportsConfig) validate() error {
	if r.OutputDir == "" {
		return fmt.Errorf("missing outputDir")
	}
	if len(r.Formats) == 0 {
		return fmt.Errorf("at least one format is required")
	}
	for _, f := range r.Formats {
		switch f {
		case "text", "html", "pdf":
		default:
			return fmt.Errorf("unknown format %q", f)
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.ID == "" {
		return fmt.Errorf("missing id")
	}
	if s.Endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	switch s.Kind {
	case "feed":
	case "html":
		if s.Rules.Item == "" || s.Rules.Title == "" || s.Rules.Body == "" || s.Rules.Link == "" || s.Rules.Date == "" {
			return fmt.Errorf("html rules require item, title, body, link and date selectors")
		}
		if len(s.Rules.DateLayouts) == 0 {
			return fmt.Errorf("html rules require at least one dateLayout")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

func (c ClientConfig) validate() error {
	if c.ID == "" {
		return fmt.Errorf("missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("keyword list must not be empty")
	}
	if len(c.Reports) == 0 {
		return fmt.Errorf("at least one report cadence is required")
	}
	seen := map[string]bool{}
	for i, r := range c.Reports {
		switch r.Cadence {
		case "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("reports[%d]: unknown cadence %q", i, r.Cadence)
		}
		if seen[r.Cadence] {
			return fmt.Errorf("reports[%d]: duplicate cadence %q", i, r.Cadence)
		}
		seen[r.Cadence] = true
		if r.LookbackDays < 1 {
			return fmt.Errorf("reports[%d]: lookbackDays must be at least 1", i)
		}
		if r.ArticleLimit < 1 {
			return fmt.Errorf("reports[%d]: articleLimit must be at least 1", i)
		}
		if r.MinRelevance < 0 {
			return fmt.Errorf("reports[%d]: minRelevance must not be negative", i)
		}
		seenCharts := map[string]bool{}
		for _, chart := range r.Charts {
			switch chart {
			case "keywords", "sentiment", "topics":
			default:
				return fmt.Errorf("reports[%d]: unknown chart %q", i, chart)
			}
			if seenCharts[chart] {
				return fmt.Errorf("reports[%d]: duplicate chart %q", i, chart)
			}
			seenCharts[chart] = true
		}
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Crawl.Concurrency != 0 {
		base.Crawl.Concurrency = override.Crawl.Concurrency
	}
	if override.Crawl.RequestTimeout != 0 {
		base.Crawl.RequestTimeout = override.Crawl.RequestTimeout
	}
	if override.Crawl.MinInterval != 0 {
		base.Crawl.MinInterval = override.Crawl.MinInterval
	}
	if override.Crawl.MaxRetries != 0 {
		base.Crawl.MaxRetries = override.Crawl.MaxRetries
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Cache.RedisAddr != "" {
		base.Cache.RedisAddr = override.Cache.RedisAddr
	}
	if override.Cache.PromptTTL != 0 {
		base.Cache.PromptTTL = override.Cache.PromptTTL
	}
	if override.Cache.PageTTL != 0 {
		base.Cache.PageTTL = override.Cache.PageTTL
	}
	if override.Cache.MemoryEntries != 0 {
		base.Cache.MemoryEntries = override.Cache.MemoryEntries
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.PrimaryModel != "" {
		base.LLM.PrimaryModel = override.LLM.PrimaryModel
	}
	if override.LLM.FallbackModel != "" {
		base.LLM.FallbackModel = override.LLM.FallbackModel
	}
	if override.LLM.MaxAttempts != 0 {
		base.LLM.MaxAttempts = override.LLM.MaxAttempts
	}
	if override.LLM.BaseDelay != 0 {
		base.LLM.BaseDelay = override.LLM.BaseDelay
	}
	if override.LLM.MaxDelay != 0 {
		base.LLM.MaxDelay = override.LLM.MaxDelay
	}
	if override.LLM.Jitter != 0 {
		base.LLM.Jitter = override.LLM.Jitter
	}
	if override.LLM.Timeout != 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.Assist {
		base.LLM.Assist = true
	}

	if override.Reports.OutputDir != "" {
		base.Reports.OutputDir = override.Reports.OutputDir
	}
	if len(override.Reports.Formats) > 0 {
		base.Reports.Formats = override.Reports.Formats
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if len(override.Clients) > 0 {
		base.Clients = override.Clients
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Crawl: CrawlConfig{
			Concurrency:    4,
			RequestTimeout: Duration(10 * time.Second),
			MinInterval:    Duration(500 * time.Millisecond),
			MaxRetries:     2,
		},
		Cache: CacheConfig{
			PromptTTL:     Duration(time.Hour),
			PageTTL:       Duration(15 * time.Minute),
			MemoryEntries: 512,
		},
		LLM: LLMConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			PrimaryModel:  "gpt-4o",
			FallbackModel: "gpt-4o-mini",
			MaxAttempts:   5,
			BaseDelay:     Duration(500 * time.Millisecond),
			MaxDelay:      Duration(8 * time.Second),
			Jitter:        0.2,
			Timeout:       Duration(60 * time.Second),
		},
		Reports: ReportsConfig{
			OutputDir: "./reports",
			Formats:   []string{"text", "html", "pdf"},
		},
		Sources: []SourceConfig{
			{
				ID:       "gulf-business",
				Name:     "Gulf Business",
				Kind:     "feed",
				Endpoint: "https://gulfbusiness.com/feed/",
				Language: "en",
				Country:  "ae",
				Politeness: PolitenessConfig{
					MinInterval: Duration(time.Second),
					Timeout:     Duration(10 * time.Second),
					MaxRetries:  2,
				},
			},
		},
		Clients: []ClientConfig{
			{
				ID:       "example",
				Name:     "Example Client",
				Keywords: []string{"energy", "investment"},
				Reports: []ReportConfig{
					{Cadence: "daily", LookbackDays: 1, ArticleLimit: 10},
					{Cadence: "weekly", LookbackDays: 7, ArticleLimit: 25},
				},
			},
		},
	}
}
