// Command diagnose_feeds checks every feed in the sources file and
// prints a per-feed diagnostic: reachability, parse status, item count,
// and the newest item date. Useful when a source stops contributing
// records and you want to know whether the feed moved, emptied, or
// broke.
//
// Usage:
//
//	go run scripts/diagnose_feeds.go [sources.yaml]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"
)

// FeedDiagnostic is the per-feed result.
type FeedDiagnostic struct {
	Label        string `json:"label"`
	URL          string `json:"url"`
	Status       string `json:"status"` // "OK", "FETCH_ERROR", "EMPTY", "DISABLED"
	ItemCount    int    `json:"item_count"`
	LatestDate   string `json:"latest_date,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	FeedType     string `json:"feed_type,omitempty"`
	ResponseTime int64  `json:"response_time_ms"`
}

type sourcesFile struct {
	Sources []struct {
		URL         string `yaml:"url"`
		Label       string `yaml:"label"`
		DisplayName string `yaml:"display_name"`
		Enabled     bool   `yaml:"enabled"`
	} `yaml:"sources"`
}

func main() {
	path := "sources.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read sources file: %v", err)
	}
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Fatalf("parse sources file: %v", err)
	}

	parser := gofeed.NewParser()
	parser.UserAgent = "feedbrief-diagnose/1.0"

	results := make([]FeedDiagnostic, 0, len(file.Sources))
	for _, src := range file.Sources {
		diag := FeedDiagnostic{Label: src.Label, URL: src.URL}

		if !src.Enabled {
			diag.Status = "DISABLED"
			results = append(results, diag)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		start := time.Now()
		feed, err := parser.ParseURLWithContext(src.URL, ctx)
		diag.ResponseTime = time.Since(start).Milliseconds()
		cancel()

		switch {
		case err != nil:
			diag.Status = "FETCH_ERROR"
			diag.ErrorMessage = err.Error()
		case len(feed.Items) == 0:
			diag.Status = "EMPTY"
			diag.FeedType = feed.FeedType
		default:
			diag.Status = "OK"
			diag.ItemCount = len(feed.Items)
			diag.FeedType = feed.FeedType
			if newest := newestItemDate(feed); newest != nil {
				diag.LatestDate = newest.Format(time.RFC3339)
			}
		}
		results = append(results, diag)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatalf("encode results: %v", err)
	}

	ok := 0
	for _, r := range results {
		if r.Status == "OK" {
			ok++
		}
	}
	fmt.Fprintf(os.Stderr, "%d/%d feeds healthy\n", ok, len(results))
}

func newestItemDate(feed *gofeed.Feed) *time.Time {
	var newest *time.Time
	for _, item := range feed.Items {
		ts := item.PublishedParsed
		if ts == nil {
			ts = item.UpdatedParsed
		}
		if ts != nil && (newest == nil || ts.After(*newest)) {
			newest = ts
		}
	}
	return newest
}
