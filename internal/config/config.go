// Package config loads the news bot configuration: the source list plus
// cache, fetch and extraction settings, from YAML with NEWSBOT_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"newsbot/internal/domain/entity"
	"newsbot/internal/infra/adapter/persistence/sqlite"
	"newsbot/internal/infra/fetcher"
	"newsbot/internal/usecase/fetch"
)

// AppName names the config and data directories.
const AppName = "news-bot"

// FileName is the configuration file looked up in every candidate directory.
const FileName = "config.yaml"

// Config is the complete runtime configuration.
type Config struct {
	Sources []SourceDef   `yaml:"sources"`
	Cache   CacheConfig   `yaml:"cache"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Extract ExtractConfig `yaml:"extract"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// SourceDef is one entry of the sources list.
type SourceDef struct {
	ID          string                `yaml:"id"`
	Name        string                `yaml:"name"`
	Country     string                `yaml:"country"`
	URL         string                `yaml:"url"`
	RSSURL      string                `yaml:"rss_url"`
	Language    string                `yaml:"language,omitempty"`
	Enabled     *bool                 `yaml:"enabled,omitempty"` // default true
	MaxArticles int                   `yaml:"max_articles,omitempty"`
	Type        string                `yaml:"type,omitempty"`
	Scraper     *entity.ScraperConfig `yaml:"scraper,omitempty"`
}

// CacheConfig controls the offline cache.
type CacheConfig struct {
	// Path of the SQLite database. Defaults to $XDG_DATA_HOME/news-bot/cache.db.
	Path                 string `yaml:"path"`
	ExpiryHours          int    `yaml:"expiry_hours"`
	MaxArticlesPerSource int    `yaml:"max_articles_per_source"`
}

// FetchConfig controls refresh cycles.
type FetchConfig struct {
	ConcurrencyLimit int           `yaml:"concurrency_limit"`
	PerSourceTimeout time.Duration `yaml:"per_source_timeout"`
	PerSourceRetries int           `yaml:"per_source_retries"`
	Backoff          time.Duration `yaml:"backoff"`
	// Deadline bounds a whole refresh. Zero means no deadline.
	Deadline    time.Duration `yaml:"deadline"`
	FreshWindow time.Duration `yaml:"fresh_window"`
	MaxEntries  int           `yaml:"max_entries"`
}

// ExtractConfig controls on-demand body extraction.
type ExtractConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxBodySize     int64         `yaml:"max_body_size"`
	MinTextLength   int           `yaml:"min_text_length"`
	RequestInterval time.Duration `yaml:"request_interval"`
	DenyPrivateIPs  *bool         `yaml:"deny_private_ips,omitempty"` // default true
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	opts := fetch.DefaultRefreshOptions()
	ext := fetcher.DefaultConfig()
	return &Config{
		Cache: CacheConfig{
			Path:                 filepath.Join(DataDir(), "cache.db"),
			ExpiryHours:          24,
			MaxArticlesPerSource: 50,
		},
		Fetch: FetchConfig{
			ConcurrencyLimit: opts.ConcurrencyLimit,
			PerSourceTimeout: opts.PerSourceTimeout,
			PerSourceRetries: opts.PerSourceRetries,
			Backoff:          opts.Backoff,
			Deadline:         2 * time.Minute,
			MaxEntries:       50,
		},
		Extract: ExtractConfig{
			Timeout:         ext.Timeout,
			MaxBodySize:     ext.MaxBodySize,
			MinTextLength:   ext.MinTextLength,
			RequestInterval: ext.RequestInterval,
		},
	}
}

// DataDir is the directory holding the cache database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Candidates returns the lookup order used when no explicit path is given.
func Candidates() []string {
	paths := []string{
		FileName,
		filepath.Join(xdg.ConfigHome, AppName, FileName),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName, FileName))
	}
	return paths
}

// Resolve returns the configuration file to read. An explicit path must
// exist. Otherwise the first existing candidate wins, and "" means none exists.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: config file %s: %w", entity.ErrConfigInvalid, explicit, err)
		}
		return explicit, nil
	}
	for _, p := range Candidates() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// Load reads the configuration. Missing files yield the defaults. Invalid
// environment overrides fall back and are returned as warnings; an invalid
// file is an error wrapping entity.ErrConfigInvalid.
func Load(explicit string) (*Config, []string, error) {
	path, err := Resolve(explicit)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if path != "" {
		// #nosec G304 -- path comes from the command line or the fixed lookup list
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Path = path
	}

	warnings := applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// Parse decodes YAML on top of cfg. Keys not present keep their current value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse config: %w", entity.ErrConfigInvalid, err)
	}
	return nil
}

// Validate checks the global settings. Source definitions are validated by the
// catalog, which drops bad entries instead of failing.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, msg string) {
		if !ok {
			errs = append(errs, &entity.ValidationError{Field: field, Message: msg})
		}
	}

	check(c.Cache.Path != "", "cache.path", "is required")
	check(c.Cache.ExpiryHours > 0, "cache.expiry_hours", "must be positive")
	check(c.Cache.MaxArticlesPerSource > 0, "cache.max_articles_per_source", "must be positive")
	check(c.Fetch.ConcurrencyLimit >= 1, "fetch.concurrency_limit", "must be at least 1")
	check(c.Fetch.PerSourceTimeout > 0, "fetch.per_source_timeout", "must be positive")
	check(c.Fetch.PerSourceRetries >= 0, "fetch.per_source_retries", "must not be negative")
	check(c.Fetch.Backoff >= 0, "fetch.backoff", "must not be negative")
	check(c.Fetch.Deadline >= 0, "fetch.deadline", "must not be negative")
	check(c.Fetch.FreshWindow >= 0, "fetch.fresh_window", "must not be negative")

	if err := c.ExtractorConfig().Validate(); err != nil {
		errs = append(errs, &entity.ValidationError{Field: "extract", Message: err.Error()})
	}
	return errors.Join(errs...)
}

// SourceDefinitions converts the sources list for the catalog.
func (c *Config) SourceDefinitions() []entity.Source {
	out := make([]entity.Source, 0, len(c.Sources))
	for _, d := range c.Sources {
		enabled := true
		if d.Enabled != nil {
			enabled = *d.Enabled
		}
		out = append(out, entity.Source{
			ID:            d.ID,
			Name:          d.Name,
			Country:       entity.Country(d.Country),
			SiteURL:       d.URL,
			FeedURL:       d.RSSURL,
			Language:      d.Language,
			Enabled:       enabled,
			MaxArticles:   d.MaxArticles,
			SourceType:    d.Type,
			ScraperConfig: d.Scraper,
		})
	}
	return out
}

// RefreshOptions returns the per-call refresh options.
func (c *Config) RefreshOptions() fetch.RefreshOptions {
	return fetch.RefreshOptions{
		ConcurrencyLimit: c.Fetch.ConcurrencyLimit,
		PerSourceTimeout: c.Fetch.PerSourceTimeout,
		PerSourceRetries: c.Fetch.PerSourceRetries,
		Backoff:          c.Fetch.Backoff,
		FreshWindow:      c.Fetch.FreshWindow,
	}
}

// StorePolicy returns the cache retention policy.
func (c *Config) StorePolicy() sqlite.Policy {
	return sqlite.Policy{
		ExpiryAge:            time.Duration(c.Cache.ExpiryHours) * time.Hour,
		MaxArticlesPerSource: c.Cache.MaxArticlesPerSource,
	}
}

// ExtractorConfig returns the extractor settings.
func (c *Config) ExtractorConfig() fetcher.Config {
	cfg := fetcher.DefaultConfig()
	cfg.Timeout = c.Extract.Timeout
	cfg.MaxBodySize = c.Extract.MaxBodySize
	cfg.MinTextLength = c.Extract.MinTextLength
	cfg.RequestInterval = c.Extract.RequestInterval
	if c.Extract.DenyPrivateIPs != nil {
		cfg.DenyPrivateIPs = *c.Extract.DenyPrivateIPs
	}
	return cfg
}
