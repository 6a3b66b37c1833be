package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <guid>post-1</guid>
      <description><![CDATA[<p>Hello <b>world</b></p>]]></description>
      <category>go</category>
      <pubDate>Mon, 09 Mar 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No Date Post</title>
      <link>https://example.com/second</link>
      <description>plain text</description>
    </item>
  </channel>
</rss>`

func TestFetch_ParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fetcher := NewRSSFetcher(server.Client())
	items, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "https://example.com/first", first.Link)
	assert.Equal(t, "post-1", first.GUID)
	assert.Equal(t, []string{"go"}, first.Categories)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), first.PublishedAt.UTC())

	second := items[1]
	assert.True(t, second.PublishedAt.IsZero(), "missing date stays zero for the normalizer to stamp")
	assert.Empty(t, second.GUID)
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewRSSFetcher(server.Client())
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestConvertItem_PrefersPublished(t *testing.T) {
	published := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	item := convertItem(&gofeed.Item{
		Title:           "t",
		Link:            "https://example.com/t",
		PublishedParsed: &published,
		UpdatedParsed:   &updated,
	})
	assert.Equal(t, published, item.PublishedAt)

	item = convertItem(&gofeed.Item{
		Title:         "t",
		Link:          "https://example.com/t",
		UpdatedParsed: &updated,
	})
	assert.Equal(t, updated, item.PublishedAt, "updated date is the fallback")
}
