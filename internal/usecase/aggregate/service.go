// Package aggregate implements the concurrent multi-source fetch stage of a
// pipeline run: fetch every enabled source, isolate per-source failures,
// normalize records, apply the recency window, and deduplicate.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/observability/logging"
	"feedbrief/internal/observability/metrics"
	"feedbrief/internal/resilience/retry"
)

// FeedItem is a single raw item returned by a feed fetcher, before
// normalization into an entity.Record.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	GUID        string
	Categories  []string
	PublishedAt time.Time // zero when the feed date could not be parsed
}

// FeedFetcher fetches and parses one feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// Config holds the aggregation parameters for one run.
type Config struct {
	// Window is the trailing recency interval; records published before
	// now-Window are dropped.
	Window time.Duration

	// NetworkPolicy is the retry policy wrapped around every source fetch.
	NetworkPolicy retry.Policy

	// MaxRecordsPerSource caps the records taken from one source.
	// Zero means no cap.
	MaxRecordsPerSource int
}

// Result is the outcome of one aggregation pass.
type Result struct {
	// Records are the normalized, windowed, deduplicated records in merge
	// order. Merge order is not deterministic across runs.
	Records []*entity.Record

	// Sources is the number of enabled sources attempted.
	Sources int

	// Failed is the number of sources whose fetch exhausted its retries.
	Failed int
}

// Service is the source aggregator. The fetcher and config are read-only
// for the duration of a run and shared safely by all fetch tasks.
type Service struct {
	fetcher FeedFetcher
	cfg     Config
	now     func() time.Time
}

// NewService creates an aggregator using the given fetcher and config.
func NewService(fetcher FeedFetcher, cfg Config) *Service {
	return &Service{
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Aggregate fetches all enabled sources concurrently and returns the merged
// record set. A failed source is logged, counted, and skipped; it never
// cancels sibling fetches. All sources failing still yields an empty,
// non-error result: the caller decides whether to short-circuit.
func (s *Service) Aggregate(ctx context.Context, sources []*entity.Source) *Result {
	logger := logging.FromContext(ctx)

	enabled := make([]*entity.Source, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	result := &Result{Sources: len(enabled)}
	if len(enabled) == 0 {
		return result
	}

	type sourceResult struct {
		records []*entity.Record
		err     error
	}

	// Per-slot writes keep the fan-out lock-free: each task owns its index.
	results := make([]sourceResult, len(enabled))
	var eg errgroup.Group
	for i, src := range enabled {
		eg.Go(func() error {
			records, err := s.fetchSource(ctx, src)
			results[i] = sourceResult{records: records, err: err}
			return nil
		})
	}
	_ = eg.Wait() // tasks never return errors; failures are carried per slot

	var merged []*entity.Record
	for i, r := range results {
		if r.err != nil {
			result.Failed++
			metrics.RecordSourceFetchError(enabled[i].Label)
			logger.Warn("source fetch failed, skipping",
				slog.String("source", enabled[i].DisplayName),
				slog.String("label", enabled[i].Label),
				slog.String("url", enabled[i].URL),
				slog.Any("error", r.err))
			continue
		}
		merged = append(merged, r.records...)
	}

	windowed := s.applyWindow(merged)
	result.Records = Deduplicate(windowed)

	logger.Info("aggregation completed",
		slog.Int("sources", result.Sources),
		slog.Int("failed_sources", result.Failed),
		slog.Int("merged_records", len(merged)),
		slog.Int("records", len(result.Records)))

	return result
}

// fetchSource fetches one source under the network retry policy and
// normalizes its payload. Per-record normalization failures skip the
// record, not the source.
func (s *Service) fetchSource(ctx context.Context, src *entity.Source) ([]*entity.Record, error) {
	start := time.Now()
	items, err := retry.DoValue(ctx, "fetch "+src.Label, s.cfg.NetworkPolicy, func(ctx context.Context) ([]FeedItem, error) {
		return s.fetcher.Fetch(ctx, src.URL)
	})
	metrics.RecordSourceFetchDuration(src.Label, time.Since(start))
	if err != nil {
		return nil, err
	}

	if s.cfg.MaxRecordsPerSource > 0 && len(items) > s.cfg.MaxRecordsPerSource {
		items = items[:s.cfg.MaxRecordsPerSource]
	}

	records := make([]*entity.Record, 0, len(items))
	for _, item := range items {
		record, err := normalizeItem(item, src, s.now())
		if err != nil {
			logging.FromContext(ctx).Debug("skipping malformed feed item",
				slog.String("source", src.DisplayName),
				slog.String("title", item.Title),
				slog.Any("error", err))
			continue
		}
		records = append(records, record)
	}

	metrics.RecordRecordsFetched(src.Label, len(records))
	return records, nil
}

// applyWindow keeps records whose PublishedAt falls within the trailing
// window: inclusive of now-Window, exclusive of the current instant.
// A zero window disables the filter.
func (s *Service) applyWindow(records []*entity.Record) []*entity.Record {
	if s.cfg.Window <= 0 {
		return records
	}

	now := s.now()
	lower := now.Add(-s.cfg.Window)

	kept := records[:0]
	for _, r := range records {
		if r.PublishedAt.Before(lower) || !r.PublishedAt.Before(now) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
