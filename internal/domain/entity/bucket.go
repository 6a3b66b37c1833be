package entity

import "fmt"

// Bucket is a named group of records destined for one output document.
// Buckets are built fresh each run by the grouper; records inside a bucket
// are ordered newest PublishedAt first.
type Bucket struct {
	Name    string
	Records []*Record
	Summary string
	Count   int
}

// Validate checks the bucket invariants: the record count matches the
// declared count and no two records share a dedup key.
func (b *Bucket) Validate() error {
	if b.Count != len(b.Records) {
		return fmt.Errorf("bucket %q: count %d does not match records %d", b.Name, b.Count, len(b.Records))
	}

	seen := make(map[string]struct{}, len(b.Records))
	for _, r := range b.Records {
		key := r.DedupKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("bucket %q: duplicate record %q", b.Name, key)
		}
		seen[key] = struct{}{}
	}

	return nil
}
