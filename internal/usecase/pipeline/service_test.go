package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbrief/internal/domain/entity"
	"feedbrief/internal/resilience/retry"
	"feedbrief/internal/usecase/aggregate"
)

type stubFetcher struct {
	items map[string][]aggregate.FeedItem
	fail  map[string]bool
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]aggregate.FeedItem, error) {
	if f.fail[url] {
		return nil, errors.New("unreachable")
	}
	return f.items[url], nil
}

type stubSummarizer struct {
	mu      sync.Mutex
	fail    map[string]bool
	block   chan struct{}
	summary string
	calls   int
}

func (s *stubSummarizer) SummarizeBucket(ctx context.Context, bucket *entity.Bucket) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.fail[bucket.Name] {
		return "", errors.New("model overloaded")
	}
	return s.summary, nil
}

func (s *stubSummarizer) Ping(ctx context.Context) error { return nil }

type written struct {
	channel string
	bucket  *entity.Bucket
}

type stubWriter struct {
	mu   sync.Mutex
	fail map[string]bool
	docs []written
}

func (w *stubWriter) Write(ctx context.Context, channel string, bucket *entity.Bucket) error {
	if w.fail[bucket.Name] {
		return errors.New("store unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs = append(w.docs, written{channel: channel, bucket: bucket})
	return nil
}

func (w *stubWriter) Ping(ctx context.Context) error { return nil }

func (w *stubWriter) byName() map[string]written {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[string]written{}
	for _, d := range w.docs {
		out[d.bucket.Name] = d
	}
	return out
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2}
}

func newTestService(t *testing.T, fetcher aggregate.FeedFetcher, sum Summarizer, w Writer, cfg Config) *Service {
	t.Helper()
	agg := aggregate.NewService(fetcher, aggregate.Config{NetworkPolicy: fastRetry()})
	sources := []*entity.Source{
		{URL: "https://a.example/feed", Label: "tech/ai", DisplayName: "A", Enabled: true},
		{URL: "https://b.example/feed", Label: "tech/dev", DisplayName: "B", Enabled: true},
	}
	return NewService(agg, sum, w, sources, cfg)
}

func feedItems(now time.Time) map[string][]aggregate.FeedItem {
	return map[string][]aggregate.FeedItem{
		"https://a.example/feed": {
			{Title: "gpu shortage", Link: "https://a.example/1", Description: "about alpha chips", PublishedAt: now.Add(-time.Hour)},
			{Title: "new model", Link: "https://a.example/2", PublishedAt: now.Add(-2 * time.Hour)},
		},
		"https://b.example/feed": {
			{Title: "go release", Link: "https://b.example/1", Description: "beta tooling", PublishedAt: now.Add(-time.Hour)},
		},
	}
}

func TestRun_HappyPath(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: feedItems(now)}
	sum := &stubSummarizer{summary: "the digest"}
	w := &stubWriter{}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
	})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 0, stats.FailedSources)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Buckets)
	assert.Zero(t, stats.SummarizeErrors)
	assert.Zero(t, stats.WriteErrors)
	assert.NotEmpty(t, stats.RunID)

	docs := w.byName()
	require.Len(t, docs, 2)
	assert.Equal(t, ChannelDigest, docs["tech/ai"].channel)
	assert.Equal(t, "the digest", docs["tech/ai"].bucket.Summary)
	for _, d := range docs {
		assert.NoError(t, d.bucket.Validate())
	}
}

func TestRun_WatchBucketsOnSeparateChannel(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: feedItems(now)}
	sum := &stubSummarizer{summary: "s"}
	w := &stubWriter{}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		WatchTerms:    []string{"alpha", "beta"},
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
	})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Buckets, "two label buckets plus two watch buckets")

	docs := w.byName()
	assert.Equal(t, ChannelWatch, docs["alpha"].channel)
	assert.Equal(t, ChannelWatch, docs["beta"].channel)
	assert.Equal(t, ChannelDigest, docs["tech/dev"].channel)
}

func TestRun_SummarizeFailureDoesNotAbort(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: feedItems(now)}
	sum := &stubSummarizer{summary: "ok", fail: map[string]bool{"tech/ai": true}}
	w := &stubWriter{}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
	})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.SummarizeErrors)
	docs := w.byName()
	require.Len(t, docs, 2, "the failed bucket is still written, without a summary")
	assert.Empty(t, docs["tech/ai"].bucket.Summary)
	assert.Equal(t, "ok", docs["tech/dev"].bucket.Summary)
}

func TestRun_WriteFailureIsolatedPerBucket(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: feedItems(now)}
	sum := &stubSummarizer{summary: "s"}
	w := &stubWriter{fail: map[string]bool{"tech/ai": true}}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
	})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.WriteErrors)
	docs := w.byName()
	require.Len(t, docs, 1)
	assert.Contains(t, docs, "tech/dev")
}

func TestRun_OverlapGuard(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{items: feedItems(now)}
	block := make(chan struct{})
	sum := &stubSummarizer{summary: "s", block: block}
	w := &stubWriter{}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
		OverlapGuard:  true,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Run(context.Background())
	}()

	// Wait until the first run is inside summarization.
	require.Eventually(t, func() bool {
		sum.mu.Lock()
		defer sum.mu.Unlock()
		return sum.calls > 0
	}, time.Second, time.Millisecond)

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	<-done

	// Once the first run finishes, the guard releases.
	_, err = svc.Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_AllSourcesFailedStillCompletes(t *testing.T) {
	fetcher := &stubFetcher{fail: map[string]bool{
		"https://a.example/feed": true,
		"https://b.example/feed": true,
	}}
	sum := &stubSummarizer{summary: "s"}
	w := &stubWriter{}

	svc := newTestService(t, fetcher, sum, w, Config{
		FallbackLabel: "general",
		ModelPolicy:   fastRetry(),
		WritePolicy:   fastRetry(),
	})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FailedSources)
	assert.Zero(t, stats.Records)
	assert.Zero(t, stats.Buckets)
	assert.Empty(t, w.byName())
}
