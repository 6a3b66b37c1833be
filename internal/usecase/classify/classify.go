// Package classify partitions records into named output buckets.
// Two independent passes operate on the same record set: label grouping
// (a pure partition by source label) and watch grouping (first-match
// keyword scan over title and description).
package classify

import (
	"sort"
	"strings"

	"feedbrief/internal/domain/entity"
)

// ByLabel places every record into the bucket named by its SourceLabel,
// using fallback for records without one. One record, one bucket. Buckets
// are returned in first-appearance order, records newest first.
func ByLabel(records []*entity.Record, fallback string) []*entity.Bucket {
	byName := make(map[string]*entity.Bucket)
	var order []string

	for _, r := range records {
		name := r.SourceLabel
		if name == "" {
			name = fallback
		}
		b, ok := byName[name]
		if !ok {
			b = &entity.Bucket{Name: name}
			byName[name] = b
			order = append(order, name)
		}
		b.Records = append(b.Records, r)
	}

	buckets := make([]*entity.Bucket, 0, len(order))
	for _, name := range order {
		buckets = append(buckets, byName[name])
	}
	return finalize(buckets)
}

// ByWatch scans each record's lowercased title and description for the
// configured watch terms. A record lands in the bucket of the first
// matching term only; terms are tested in configured order. Records
// matching no term are excluded from this pass.
func ByWatch(records []*entity.Record, terms []string) []*entity.Bucket {
	if len(terms) == 0 {
		return nil
	}

	byTerm := make(map[string]*entity.Bucket, len(terms))
	buckets := make([]*entity.Bucket, 0, len(terms))
	for _, term := range terms {
		b := &entity.Bucket{Name: term}
		byTerm[term] = b
		buckets = append(buckets, b)
	}

	for _, r := range records {
		text := strings.ToLower(r.Title + " " + r.Description)
		for _, term := range terms {
			if strings.Contains(text, strings.ToLower(term)) {
				byTerm[term].Records = append(byTerm[term].Records, r)
				break
			}
		}
	}

	return finalize(buckets)
}

// finalize sorts each bucket newest-first (stable, ties keep input order),
// sets the counts, and drops empty buckets.
func finalize(buckets []*entity.Bucket) []*entity.Bucket {
	out := buckets[:0]
	for _, b := range buckets {
		if len(b.Records) == 0 {
			continue
		}
		sort.SliceStable(b.Records, func(i, j int) bool {
			return b.Records[i].PublishedAt.After(b.Records[j].PublishedAt)
		})
		b.Count = len(b.Records)
		out = append(out, b)
	}
	return out
}
