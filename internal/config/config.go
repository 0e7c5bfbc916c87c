package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Politeness PolitenessConfig `yaml:"politeness" mapstructure:"politeness"`
	Dedupe     DedupeConfig     `yaml:"dedupe" mapstructure:"dedupe"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Job        JobConfig        `yaml:"job" mapstructure:"job"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	Yelp       YelpConfig       `yaml:"yelp" mapstructure:"yelp"`
	Nominatim  NominatimConfig  `yaml:"nominatim" mapstructure:"nominatim"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the job API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DiscoveryConfig configures source adapters.
type DiscoveryConfig struct {
	// DefaultSources are used when a job query names no sources.
	DefaultSources []string `yaml:"default_sources" mapstructure:"default_sources"`
	// Priority is the conflict-resolution order for candidate merging;
	// earlier entries win field conflicts.
	Priority []string `yaml:"priority" mapstructure:"priority"`
}

// CrawlConfig configures the per-site crawler.
type CrawlConfig struct {
	MaxPagesPerSite  int      `yaml:"max_pages_per_site" mapstructure:"max_pages_per_site"`
	PageTimeoutSecs  int      `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	SiteBudgetSecs   int      `yaml:"site_budget_secs" mapstructure:"site_budget_secs"`
	PreferredPaths   []string `yaml:"preferred_paths" mapstructure:"preferred_paths"`
	ExcludePaths     []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	UserAgent        string   `yaml:"user_agent" mapstructure:"user_agent"`
	SiteFailureLimit int      `yaml:"site_failure_limit" mapstructure:"site_failure_limit"`
}

// PageTimeout returns the per-page fetch timeout.
func (c CrawlConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSecs) * time.Second
}

// SiteBudget returns the soft per-candidate crawl budget.
func (c CrawlConfig) SiteBudget() time.Duration {
	return time.Duration(c.SiteBudgetSecs) * time.Second
}

// PolitenessConfig configures the crawl concurrency gate.
type PolitenessConfig struct {
	GlobalConcurrency    int `yaml:"global_concurrency" mapstructure:"global_concurrency"`
	PerDomainConcurrency int `yaml:"per_domain_concurrency" mapstructure:"per_domain_concurrency"`
	PerDomainDelayMillis int `yaml:"per_domain_delay_millis" mapstructure:"per_domain_delay_millis"`
}

// PerDomainDelay returns the minimum inter-request delay per domain.
func (c PolitenessConfig) PerDomainDelay() time.Duration {
	return time.Duration(c.PerDomainDelayMillis) * time.Millisecond
}

// DedupeConfig configures candidate merging.
type DedupeConfig struct {
	// NameSimilarityThreshold is the Jaro-Winkler cutoff for the fuzzy
	// name+address fallback key. Tunable; boundary-tested.
	NameSimilarityThreshold float64 `yaml:"name_similarity_threshold" mapstructure:"name_similarity_threshold"`
}

// ScoringConfig holds the quality score weights and penalties.
type ScoringConfig struct {
	EmailWeight      int `yaml:"email_weight" mapstructure:"email_weight"`
	PhoneWeight      int `yaml:"phone_weight" mapstructure:"phone_weight"`
	ReachableWeight  int `yaml:"reachable_weight" mapstructure:"reachable_weight"`
	AddressWeight    int `yaml:"address_weight" mapstructure:"address_weight"`
	SocialWeight     int `yaml:"social_weight" mapstructure:"social_weight"`
	FreshnessWeight  int `yaml:"freshness_weight" mapstructure:"freshness_weight"`
	FreshnessDays    int `yaml:"freshness_days" mapstructure:"freshness_days"`
	InvalidEmailPen  int `yaml:"invalid_email_penalty" mapstructure:"invalid_email_penalty"`
	MissingWebsitePen int `yaml:"missing_website_penalty" mapstructure:"missing_website_penalty"`
	HighThreshold    int `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold  int `yaml:"medium_threshold" mapstructure:"medium_threshold"`
}

// JobConfig configures job execution.
type JobConfig struct {
	// Workers bounds how many candidate pipelines run concurrently.
	Workers             int `yaml:"workers" mapstructure:"workers"`
	CandidateBudgetSecs int `yaml:"candidate_budget_secs" mapstructure:"candidate_budget_secs"`
}

// CandidateBudget returns the soft per-candidate pipeline budget.
func (c JobConfig) CandidateBudget() time.Duration {
	return time.Duration(c.CandidateBudgetSecs) * time.Second
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// YelpConfig holds Yelp Fusion API settings.
type YelpConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NominatimConfig holds OSM Nominatim settings. No key required.
type NominatimConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds the optional LLM extraction settings. An empty key
// disables LLM augmentation; the regex extractor is used alone.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospector.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("discovery.default_sources", []string{"google_places", "yelp"})
	v.SetDefault("discovery.priority", []string{"google_places", "yelp", "openstreetmap"})
	v.SetDefault("crawl.max_pages_per_site", 5)
	v.SetDefault("crawl.page_timeout_secs", 10)
	v.SetDefault("crawl.site_budget_secs", 90)
	v.SetDefault("crawl.preferred_paths", []string{"/contact", "/contact-us", "/about", "/about-us", "/team", "/impressum"})
	v.SetDefault("crawl.exclude_paths", []string{"/blog/*", "/news/*", "/press/*", "/careers/*"})
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; ProspectorBot/1.0)")
	v.SetDefault("crawl.site_failure_limit", 3)
	v.SetDefault("politeness.global_concurrency", 16)
	v.SetDefault("politeness.per_domain_concurrency", 2)
	v.SetDefault("politeness.per_domain_delay_millis", 500)
	v.SetDefault("dedupe.name_similarity_threshold", 0.90)
	v.SetDefault("scoring.email_weight", 25)
	v.SetDefault("scoring.phone_weight", 20)
	v.SetDefault("scoring.reachable_weight", 15)
	v.SetDefault("scoring.address_weight", 15)
	v.SetDefault("scoring.social_weight", 10)
	v.SetDefault("scoring.freshness_weight", 15)
	v.SetDefault("scoring.freshness_days", 30)
	v.SetDefault("scoring.invalid_email_penalty", 10)
	v.SetDefault("scoring.missing_website_penalty", 10)
	v.SetDefault("scoring.high_threshold", 80)
	v.SetDefault("scoring.medium_threshold", 50)
	v.SetDefault("job.workers", 8)
	v.SetDefault("job.candidate_budget_secs", 120)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
