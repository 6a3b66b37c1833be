package summarizer

import (
	"context"
	"fmt"

	"feedbrief/internal/domain/entity"
)

// Noop is a local summarizer used when no model API is configured.
// It produces a deterministic one-line description of the bucket instead
// of calling out.
type Noop struct{}

// NewNoop creates a no-op summarizer.
func NewNoop() *Noop {
	return &Noop{}
}

// SummarizeBucket returns a plain headline count, never an error.
func (n *Noop) SummarizeBucket(_ context.Context, bucket *entity.Bucket) (string, error) {
	if bucket.Count == 1 {
		return fmt.Sprintf("1 item in %s: %s", bucket.Name, bucket.Records[0].Title), nil
	}
	return fmt.Sprintf("%d items in %s", bucket.Count, bucket.Name), nil
}

// Ping always succeeds.
func (n *Noop) Ping(context.Context) error {
	return nil
}
