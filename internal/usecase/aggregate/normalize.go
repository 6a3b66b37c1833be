package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"feedbrief/internal/domain/entity"
)

// normalizeItem converts one raw feed item into an entity.Record, tagging it
// with its originating source. Items without a link cannot be identified or
// deduplicated and are rejected. An unparsable publish date is stamped with
// now so the record passes the recency window on the run it was fetched in.
func normalizeItem(item FeedItem, src *entity.Source, now time.Time) (*entity.Record, error) {
	if strings.TrimSpace(item.Link) == "" {
		return nil, fmt.Errorf("feed item %q: missing link", item.Title)
	}

	identity := item.GUID
	if identity == "" {
		identity = item.Link
	}

	publishedAt := item.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}

	raw := item.Content
	if raw == "" {
		raw = item.Description
	}

	return &entity.Record{
		Title:       strings.TrimSpace(item.Title),
		Link:        item.Link,
		Description: stripHTML(item.Description),
		RawContent:  raw,
		PublishedAt: publishedAt,
		Author:      item.Author,
		Categories:  item.Categories,
		Identity:    identity,
		SourceLabel: src.Label,
		SourceTitle: src.DisplayName,
		SourceLink:  src.URL,
	}, nil
}

// stripHTML reduces a feed description to plain text: tags removed,
// entities decoded, whitespace collapsed.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
