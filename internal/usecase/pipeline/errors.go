package pipeline

import "errors"

// ErrRunInProgress is returned when the overlap guard rejects a run
// because the previous one has not finished. The scheduler treats it as
// a skipped tick, not a failure.
var ErrRunInProgress = errors.New("pipeline run already in progress")
