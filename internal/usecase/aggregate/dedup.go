package aggregate

import "feedbrief/internal/domain/entity"

// Deduplicate removes records sharing a dedup key, keeping the first-seen
// record for each key and preserving relative order. The operation is
// idempotent: deduplicating twice yields the same result as once.
func Deduplicate(records []*entity.Record) []*entity.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]*entity.Record, 0, len(records))
	for _, r := range records {
		key := r.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
