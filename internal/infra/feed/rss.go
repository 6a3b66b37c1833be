// Package feed provides the RSS/Atom fetch adapter built on gofeed.
// Retry is owned by the aggregator; this adapter contributes the circuit
// breaker so a persistently broken feed stops consuming attempts.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"feedbrief/internal/resilience/circuitbreaker"
	"feedbrief/internal/usecase/aggregate"
)

const userAgent = "feedbrief/1.0"

// RSSFetcher implements aggregate.FeedFetcher using the gofeed parser.
type RSSFetcher struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewRSSFetcher creates a fetcher using the given HTTP client.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	return &RSSFetcher{
		client:  client,
		breaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
	}
}

// Fetch retrieves and parses the feed at feedURL through the circuit
// breaker, returning one FeedItem per entry.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]aggregate.FeedItem, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, feedURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("feed fetch rejected, circuit breaker open",
				slog.String("url", feedURL),
				slog.String("state", f.breaker.State().String()))
		}
		return nil, err
	}
	return result.([]aggregate.FeedItem), nil
}

func (f *RSSFetcher) doFetch(ctx context.Context, feedURL string) ([]aggregate.FeedItem, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = f.client

	parsed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]aggregate.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, convertItem(it))
	}
	return items, nil
}

// convertItem maps one gofeed item to a raw FeedItem. Dates that gofeed
// could not parse stay zero; the aggregator stamps those during
// normalization.
func convertItem(it *gofeed.Item) aggregate.FeedItem {
	var publishedAt time.Time
	switch {
	case it.PublishedParsed != nil:
		publishedAt = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		publishedAt = *it.UpdatedParsed
	}

	var author string
	if len(it.Authors) > 0 {
		author = it.Authors[0].Name
	}

	return aggregate.FeedItem{
		Title:       it.Title,
		Link:        it.Link,
		Description: it.Description,
		Content:     it.Content,
		Author:      author,
		GUID:        it.GUID,
		Categories:  it.Categories,
		PublishedAt: publishedAt,
	}
}
