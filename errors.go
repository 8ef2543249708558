package nearcache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations invoked after Close.
var ErrClosed = errors.New("nearcache: cache is closed")

// LoaderError wraps a loader failure inside GetOrLoad. It is the only error
// class GetOrLoad returns on a healthy cache: remote-tier trouble is retried
// and then degrades to a miss rather than failing the read.
type LoaderError struct {
	Key string
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("load %q failed: %v", e.Key, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// WriteError reports a write-through that did not land. Tier names the tier
// that refused it.
type WriteError struct {
	Tier string
	Key  string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %q to %s tier failed: %v", e.Key, e.Tier, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// InvalidateError reports that the remote delete behind Invalidate kept
// failing after retries. The local copy is already gone; peers keep theirs
// until TTL or the next successful invalidation.
type InvalidateError struct {
	Key string
	Err error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.Err)
}

func (e *InvalidateError) Unwrap() error { return e.Err }
