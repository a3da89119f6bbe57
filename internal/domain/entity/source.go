package entity

import (
	"fmt"
	"strings"
)

// Country groups sources for display.
type Country string

const (
	CountryJapan      Country = "Japan"
	CountrySouthKorea Country = "South Korea"
	CountryChina      Country = "China"
	CountryPoland     Country = "Poland"
	CountryGermany    Country = "Germany"
	CountryAcademic   Country = "Academic"
	CountryRegional   Country = "Regional"
)

var knownCountries = map[Country]bool{
	CountryJapan:      true,
	CountrySouthKorea: true,
	CountryChina:      true,
	CountryPoland:     true,
	CountryGermany:    true,
	CountryAcademic:   true,
	CountryRegional:   true,
}

// Source types.
const (
	SourceTypeRSS  = "RSS"
	SourceTypeHTML = "HTML"
)

// Source represents a configured news source.
// It is immutable for the duration of a refresh.
type Source struct {
	ID       string
	Name     string
	Country  Country
	SiteURL  string
	FeedURL  string
	Language string
	Enabled  bool

	// MaxArticles caps the number of cached articles for this source.
	// Zero means the global cap applies.
	MaxArticles int

	SourceType    string         // RSS or HTML
	ScraperConfig *ScraperConfig // Required for HTML sources
}

// ScraperConfig holds CSS selectors for scrape-only sources.
type ScraperConfig struct {
	ItemSelector    string `yaml:"item_selector"`
	TitleSelector   string `yaml:"title_selector"`
	URLSelector     string `yaml:"url_selector"`
	DateSelector    string `yaml:"date_selector,omitempty"`
	SummarySelector string `yaml:"summary_selector,omitempty"`
	DateFormat      string `yaml:"date_format,omitempty"`

	// URLPrefix is prepended to relative links.
	URLPrefix string `yaml:"url_prefix,omitempty"`
}

// Validate validates the Source definition.
// The returned error wraps ErrConfigInvalid.
func (s *Source) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return invalidSource(s, "id", "id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return invalidSource(s, "name", "name is required")
	}
	if !knownCountries[s.Country] {
		return invalidSource(s, "country", fmt.Sprintf("unknown country %q", s.Country))
	}
	if err := ValidateURL(s.FeedURL); err != nil {
		return invalidSource(s, "rss_url", err.Error())
	}
	if s.SiteURL != "" {
		if err := ValidateURL(s.SiteURL); err != nil {
			return invalidSource(s, "url", err.Error())
		}
	}
	if s.MaxArticles < 0 {
		return invalidSource(s, "max_articles", "must not be negative")
	}

	// SourceTypeが空の場合はRSSとみなす
	if s.SourceType == "" {
		s.SourceType = SourceTypeRSS
	}
	switch s.SourceType {
	case SourceTypeRSS:
	case SourceTypeHTML:
		if s.ScraperConfig == nil {
			return invalidSource(s, "scraper", "scraper config is required for HTML sources")
		}
		if s.ScraperConfig.ItemSelector == "" || s.ScraperConfig.TitleSelector == "" {
			return invalidSource(s, "scraper", "item_selector and title_selector are required")
		}
	default:
		return invalidSource(s, "type", fmt.Sprintf("invalid source type %q (must be RSS or HTML)", s.SourceType))
	}

	return nil
}

// Cap returns the per-source article cap, falling back to def when unset.
func (s *Source) Cap(def int) int {
	if s.MaxArticles > 0 {
		return s.MaxArticles
	}
	return def
}

func invalidSource(s *Source, field, msg string) error {
	return &ValidationError{
		Field:    field,
		Message:  msg,
		SourceID: s.ID,
	}
}
