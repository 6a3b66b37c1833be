// Package config loads the application configuration: the sources file
// naming the feeds to aggregate and the pipeline settings coming from
// the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"feedbrief/internal/domain/entity"
)

// SourcesFile is the on-disk configuration naming feed sources and
// watch terms.
//
// Example:
//
//	sources:
//	  - url: https://example.com/feed.xml
//	    label: tech
//	    display_name: Example Tech
//	    enabled: true
//	watch:
//	  terms:
//	    - security
//	    - outage
type SourcesFile struct {
	Sources []*entity.Source `yaml:"sources"`
	Watch   WatchConfig      `yaml:"watch"`
}

// WatchConfig lists the terms routed to the watch channel. Term order is
// significant: a record joins the bucket of the first term it matches.
type WatchConfig struct {
	Terms []string `yaml:"terms"`
}

// LoadSourcesFile reads and validates the sources file. Sources that
// fail validation are rejected, not skipped: a broken entry means the
// file needs fixing, and starting without it would silently drop a feed.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s names no sources", path)
	}

	seen := make(map[string]bool, len(file.Sources))
	for i, src := range file.Sources {
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("sources file %s: source %d: %w", path, i, err)
		}
		if seen[src.URL] {
			return nil, fmt.Errorf("sources file %s: duplicate source url %s", path, src.URL)
		}
		seen[src.URL] = true
	}

	for i, term := range file.Watch.Terms {
		if strings.TrimSpace(term) == "" {
			return nil, fmt.Errorf("sources file %s: watch term %d is empty", path, i)
		}
	}

	enabled := 0
	for _, src := range file.Sources {
		if src.Enabled {
			enabled++
		}
	}
	slog.Info("sources file loaded",
		slog.String("path", path),
		slog.Int("sources", len(file.Sources)),
		slog.Int("enabled", enabled),
		slog.Int("watch_terms", len(file.Watch.Terms)))

	return &file, nil
}
