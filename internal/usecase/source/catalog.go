// Package source provides the source catalog: the validated, ordered set of
// news sources a refresh works on.
package source

import (
	"fmt"
	"log/slog"

	"newsbot/internal/domain/entity"
)

// Catalog holds validated source definitions in configuration order.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	sources  []entity.Source
	byID     map[string]int
	warnings []error
}

// NewCatalog validates defs. Malformed definitions and duplicate ids are
// dropped with a warning wrapping entity.ErrConfigInvalid; construction never fails.
func NewCatalog(defs []entity.Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		sources: make([]entity.Source, 0, len(defs)),
		byID:    make(map[string]int, len(defs)),
	}

	for i := range defs {
		src := defs[i]
		if err := src.Validate(); err != nil {
			c.warn(logger, err, i)
			continue
		}
		if _, dup := c.byID[src.ID]; dup {
			c.warn(logger, &entity.ValidationError{
				Field:    "id",
				Message:  fmt.Sprintf("duplicate id, definition #%d ignored", i+1),
				SourceID: src.ID,
			}, i)
			continue
		}
		c.byID[src.ID] = len(c.sources)
		c.sources = append(c.sources, src)
	}

	logger.Info("source catalog loaded",
		slog.Int("defined", len(defs)),
		slog.Int("valid", len(c.sources)),
		slog.Int("enabled", len(c.EnabledSources())),
		slog.Int("warnings", len(c.warnings)))
	return c
}

func (c *Catalog) warn(logger *slog.Logger, err error, index int) {
	c.warnings = append(c.warnings, err)
	logger.Warn("source definition dropped",
		slog.Int("index", index),
		slog.Any("error", err))
}

// EnabledSources returns the enabled sources in configuration order.
func (c *Catalog) EnabledSources() []entity.Source {
	out := make([]entity.Source, 0, len(c.sources))
	for _, s := range c.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// All returns every valid source, enabled or not.
func (c *Catalog) All() []entity.Source {
	return append([]entity.Source(nil), c.sources...)
}

// Warnings returns the validation problems found while loading.
func (c *Catalog) Warnings() []error {
	return append([]error(nil), c.warnings...)
}

// Get looks a source up by id.
func (c *Catalog) Get(id string) (entity.Source, bool) {
	i, ok := c.byID[id]
	if !ok {
		return entity.Source{}, false
	}
	return c.sources[i], true
}

// IDs returns the ids of the enabled sources.
func (c *Catalog) IDs() []string {
	enabled := c.EnabledSources()
	ids := make([]string, len(enabled))
	for i, s := range enabled {
		ids[i] = s.ID
	}
	return ids
}

// CountryGroup is the enabled sources of one country.
type CountryGroup struct {
	Country entity.Country
	Sources []entity.Source
}

// ByCountry groups the enabled sources by country. Groups and their sources
// keep configuration order.
func (c *Catalog) ByCountry() []CountryGroup {
	var groups []CountryGroup
	index := make(map[entity.Country]int)
	for _, s := range c.EnabledSources() {
		i, ok := index[s.Country]
		if !ok {
			i = len(groups)
			index[s.Country] = i
			groups = append(groups, CountryGroup{Country: s.Country})
		}
		groups[i].Sources = append(groups[i].Sources, s)
	}
	return groups
}
