package entity

import "time"

// Record is one normalized unit of fetched content (an article or entry).
// Records are created by normalization during aggregation, owned by the
// pipeline run that produced them, and never mutated after creation.
type Record struct {
	Title       string
	Link        string
	Description string // plain text, HTML stripped
	RawContent  string
	PublishedAt time.Time
	Author      string
	Categories  []string

	// Identity is the feed-supplied identifier; defaults to Link when the
	// feed does not carry one.
	Identity string

	// Origin tagging applied during normalization.
	SourceLabel string
	SourceTitle string
	SourceLink  string
}

// DedupKey derives the within-run uniqueness key for the record.
// No two records in one run's record set may share this key.
func (r *Record) DedupKey() string {
	return r.Title + "_" + r.Link
}
