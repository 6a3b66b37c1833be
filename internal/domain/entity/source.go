package entity

import (
	"fmt"
	"net/url"
	"strings"
)

// Source represents one configured external feed.
// The full source list is owned by configuration, loaded once per run,
// and never mutated while a run is in flight.
type Source struct {
	// URL is the feed endpoint (RSS/Atom).
	URL string `yaml:"url"`

	// Label is a hierarchical grouping label, e.g. "tech/ai".
	// Records fetched from this source inherit it as their SourceLabel.
	Label string `yaml:"label"`

	// DisplayName is the human-readable source name used in output documents.
	DisplayName string `yaml:"display_name"`

	// Enabled controls whether the source participates in a run.
	Enabled bool `yaml:"enabled"`
}

// Validate checks that the source is well formed enough to fetch.
func (s *Source) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("source %q: url is required", s.DisplayName)
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("source %q: invalid url: %w", s.DisplayName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.DisplayName, u.Scheme)
	}

	return nil
}
