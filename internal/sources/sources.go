// Package sources implements the source registry: the static catalog of
// external sites the pipeline crawls, loaded once at startup and immutable
// afterwards.
package sources

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// Selectors describes how to locate content on a source's pages. Listing
// selectors drive URL discovery; detail selectors drive item extraction.
type Selectors struct {
	ListingPath   string `yaml:"listing_path"`
	ItemLink      string `yaml:"item_link"`
	NextPage      string `yaml:"next_page"`
	Title         string `yaml:"title"`
	OriginalTitle string `yaml:"original_title"`
	Year          string `yaml:"year"`
	Rating        string `yaml:"rating"`
	Genres        string `yaml:"genres"`
	Synopsis      string `yaml:"synopsis"`
	Poster        string `yaml:"poster"`
	Status        string `yaml:"status"`
	Actors        string `yaml:"actors"`
	Director      string `yaml:"director"`
	Streaming     string `yaml:"streaming"`
}

// SourceConfig is one registry entry. Immutable at runtime.
type SourceConfig struct {
	Name                string             `yaml:"name"`
	BaseURL             string             `yaml:"base_url"`
	FallbackURLs        []string           `yaml:"fallback_urls"`
	Category            domain.ContentType `yaml:"category"`
	Priority            int                `yaml:"priority"`
	UpdateIntervalHours int                `yaml:"update_interval_hours"`
	Languages           []string           `yaml:"languages"`
	Selectors           Selectors          `yaml:"selectors"`
}

// Validate checks one entry for configuration mistakes.
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source with base_url %q has no name", s.BaseURL)
	}
	if s.BaseURL == "" {
		return fmt.Errorf("source %s has no base_url", s.Name)
	}
	if s.UpdateIntervalHours <= 0 {
		return fmt.Errorf("source %s: update_interval_hours must be > 0, got %d",
			s.Name, s.UpdateIntervalHours)
	}
	switch s.Category {
	case domain.TypeDrama, domain.TypeAnime, domain.TypeFilm, domain.TypeBollywood:
	default:
		return fmt.Errorf("source %s: unknown category %q", s.Name, s.Category)
	}
	return nil
}

// URLs returns the base URL followed by the configured fallbacks.
func (s *SourceConfig) URLs() []string {
	urls := make([]string, 0, len(s.FallbackURLs)+1)
	urls = append(urls, s.BaseURL)
	urls = append(urls, s.FallbackURLs...)
	return urls
}

// Registry holds every configured source, keyed by name.
type Registry struct {
	byName map[string]*SourceConfig
	names  []string
}

type registryFile struct {
	Sources []*SourceConfig `yaml:"sources"`
}

// Load reads the registry definition from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	return New(file.Sources)
}

// New builds a registry from already-parsed configs.
func New(configs []*SourceConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]*SourceConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byName[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate source %s", cfg.Name)
		}
		cfg.Priority = domain.ClampPriority(cfg.Priority)
		r.byName[cfg.Name] = cfg
		r.names = append(r.names, cfg.Name)
	}
	if len(r.names) == 0 {
		return nil, fmt.Errorf("source registry is empty")
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the config for a source name.
func (r *Registry) Get(name string) (*SourceConfig, error) {
	cfg, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q: %w", name, domain.ErrNotFound)
	}
	return cfg, nil
}

// All returns every source config in name order.
func (r *Registry) All() []*SourceConfig {
	out := make([]*SourceConfig, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// ByCategory returns the sources feeding one catalog, in name order.
func (r *Registry) ByCategory(category domain.ContentType) []*SourceConfig {
	var out []*SourceConfig
	for _, name := range r.names {
		if cfg := r.byName[name]; cfg.Category == category {
			out = append(out, cfg)
		}
	}
	return out
}
