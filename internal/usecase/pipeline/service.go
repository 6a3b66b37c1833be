// Package pipeline implements one end-to-end run: aggregate all sources,
// group records into buckets, summarize each bucket through the model
// collaborator, and hand the result to the document writer.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/observability/logging"
	"feedbrief/internal/observability/metrics"
	"feedbrief/internal/resilience/retry"
	"feedbrief/internal/usecase/aggregate"
	"feedbrief/internal/usecase/classify"
)

// bucketParallelism bounds concurrent bucket summarize+write work; model
// calls are rate-limited downstream, so a small fan-out is enough.
const bucketParallelism = 3

// Summarizer is the external language-model collaborator.
type Summarizer interface {
	// SummarizeBucket returns a summary string for the bucket's records.
	SummarizeBucket(ctx context.Context, bucket *entity.Bucket) (string, error)

	// Ping performs a lightweight connectivity check.
	Ping(ctx context.Context) error
}

// Writer is the external document persistence collaborator.
// Channel distinguishes the primary digest output from the watch output.
type Writer interface {
	Write(ctx context.Context, channel string, bucket *entity.Bucket) error
	Ping(ctx context.Context) error
}

// Output channels handed to the writer.
const (
	ChannelDigest = "digest"
	ChannelWatch  = "watch"
)

// Config holds the per-run parameters, constructed once at process start.
type Config struct {
	// FallbackLabel names the bucket for records without a source label.
	FallbackLabel string

	// WatchTerms enables the secondary watch grouping pass when non-empty.
	WatchTerms []string

	// ModelPolicy is the retry policy for summarization calls.
	ModelPolicy retry.Policy

	// WritePolicy is the retry policy for document writes.
	WritePolicy retry.Policy

	// OverlapGuard skips a run while a previous one is still in flight.
	OverlapGuard bool
}

// RunStats describes one completed pipeline run.
type RunStats struct {
	RunID           string
	Sources         int
	FailedSources   int
	Records         int
	Buckets         int
	SummarizeErrors int64
	WriteErrors     int64
	Duration        time.Duration
}

// Service orchestrates pipeline runs. The sources list and config are
// read-only after construction.
type Service struct {
	aggregator *aggregate.Service
	summarizer Summarizer
	writer     Writer
	sources    []*entity.Source
	cfg        Config

	inFlight atomic.Bool
}

// NewService creates a pipeline service.
func NewService(
	aggregator *aggregate.Service,
	summarizer Summarizer,
	writer Writer,
	sources []*entity.Source,
	cfg Config,
) *Service {
	return &Service{
		aggregator: aggregator,
		summarizer: summarizer,
		writer:     writer,
		sources:    sources,
		cfg:        cfg,
	}
}

// Run executes one aggregate → group → summarize → write pass.
//
// Per-bucket summarization and write failures are isolated: they are
// logged, counted in the stats, and never abort the run. When the overlap
// guard is enabled and a previous run is still in flight, Run returns
// ErrRunInProgress without doing any work.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	if s.cfg.OverlapGuard {
		if !s.inFlight.CompareAndSwap(false, true) {
			slog.Warn("pipeline run skipped, previous run still in progress")
			return nil, ErrRunInProgress
		}
		defer s.inFlight.Store(false)
	}

	runID := uuid.New().String()
	logger := logging.WithRunID(slog.Default(), runID)
	ctx = logging.WithLogger(ctx, logger)
	start := time.Now()

	logger.Info("pipeline run started", slog.Int("sources", len(s.sources)))

	result := s.aggregator.Aggregate(ctx, s.sources)

	stats := &RunStats{
		RunID:         runID,
		Sources:       result.Sources,
		FailedSources: result.Failed,
		Records:       len(result.Records),
	}

	buckets := make([]bucketWork, 0)
	for _, b := range classify.ByLabel(result.Records, s.cfg.FallbackLabel) {
		buckets = append(buckets, bucketWork{channel: ChannelDigest, bucket: b})
	}
	for _, b := range classify.ByWatch(result.Records, s.cfg.WatchTerms) {
		buckets = append(buckets, bucketWork{channel: ChannelWatch, bucket: b})
	}
	stats.Buckets = len(buckets)

	var eg errgroup.Group
	eg.SetLimit(bucketParallelism)
	for _, work := range buckets {
		eg.Go(func() error {
			s.processBucket(ctx, work, stats)
			return nil
		})
	}
	_ = eg.Wait() // bucket failures are counted, never propagated

	stats.Duration = time.Since(start)
	logger.Info("pipeline run completed",
		slog.Int("sources", stats.Sources),
		slog.Int("failed_sources", stats.FailedSources),
		slog.Int("records", stats.Records),
		slog.Int("buckets", stats.Buckets),
		slog.Int64("summarize_errors", atomic.LoadInt64(&stats.SummarizeErrors)),
		slog.Int64("write_errors", atomic.LoadInt64(&stats.WriteErrors)),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

type bucketWork struct {
	channel string
	bucket  *entity.Bucket
}

// processBucket summarizes and writes one bucket. Each bucket is owned by
// exactly one goroutine; only the shared stats counters need atomics.
// The run-scoped logger rides the context.
func (s *Service) processBucket(ctx context.Context, work bucketWork, stats *RunStats) {
	logger := logging.FromContext(ctx)
	bucket := work.bucket

	summaryStart := time.Now()
	summary, err := retry.DoValue(ctx, "summarize "+bucket.Name, s.cfg.ModelPolicy, func(ctx context.Context) (string, error) {
		return s.summarizer.SummarizeBucket(ctx, bucket)
	})
	metrics.RecordBucketSummarized(err == nil, time.Since(summaryStart))
	if err != nil {
		atomic.AddInt64(&stats.SummarizeErrors, 1)
		logger.Warn("bucket summarization failed, writing without summary",
			slog.String("bucket", bucket.Name),
			slog.String("channel", work.channel),
			slog.Int("records", bucket.Count),
			slog.Any("error", err))
		summary = ""
	}
	bucket.Summary = summary

	err = retry.Do(ctx, "write "+bucket.Name, s.cfg.WritePolicy, func(ctx context.Context) error {
		return s.writer.Write(ctx, work.channel, bucket)
	})
	metrics.RecordDocumentWritten(err == nil)
	if err != nil {
		atomic.AddInt64(&stats.WriteErrors, 1)
		logger.Warn("document write failed",
			slog.String("bucket", bucket.Name),
			slog.String("channel", work.channel),
			slog.Any("error", err))
		return
	}

	logger.Info("document written",
		slog.String("bucket", bucket.Name),
		slog.String("channel", work.channel),
		slog.Int("records", bucket.Count))
}
