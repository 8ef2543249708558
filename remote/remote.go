// Package remote defines the shared cache tier boundary: hash-shaped records
// with embedded staleness metadata, plus a push feed of invalidation notices.
// Every mutation announces itself on the feed, which is how other processes
// sharing the store keep their local tiers coherent.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrMalformed marks a record whose hash fields cannot be parsed. Callers
// treat it as a miss; the usual reaction is a best-effort delete (self-heal).
var ErrMalformed = errors.New("remote: malformed record")

// Record mirrors the stored hash: payload plus write-time metadata. The
// metadata travels with the record so every reader re-derives logical expiry
// instead of trusting the store's physical TTL.
type Record struct {
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
}

// Expired reports whether the record is logically absent at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.StoredAt.Add(r.TTL))
}

// Op identifies the mutation behind a notice.
type Op uint8

const (
	OpSet Op = iota + 1
	OpDel
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDel:
		return "del"
	default:
		return "unknown"
	}
}

// Notice is one invalidation event. Origin is the writing store instance's
// ID; a subscriber compares it with its own store's Origin to recognize its
// own writes. Key is the caller's cache key, unprefixed.
type Notice struct {
	Op     Op
	Origin string
	Key    string
}

// Feed is one subscription's event stream. Events is closed when the
// subscription dies (network loss, server restart, Close); Err then reports
// why. A closed feed never recovers; subscribers open a fresh one.
type Feed interface {
	Events() <-chan Notice
	Err() error
	Close() error
}

// Store is the client for the shared tier. Implementations are bound to a
// namespace: keys passed in are the caller's cache keys and the store owns
// prefixing, the notice channel, and origin stamping.
type Store interface {
	// Fetch returns the record at key; ok=false with a nil error is a miss.
	Fetch(ctx context.Context, key string) (rec Record, ok bool, err error)

	// Save writes the record with its metadata, applies the physical TTL,
	// and announces the write (OpSet) to subscribers.
	Save(ctx context.Context, key string, rec Record) error

	// Delete removes key and announces it (OpDel). Reports whether the
	// delete actually removed something.
	Delete(ctx context.Context, key string) (removed bool, err error)

	// Exists is a metadata-only presence probe; it never moves the payload.
	Exists(ctx context.Context, key string) (bool, error)

	// Subscribe opens the invalidation feed for this store's namespace.
	Subscribe(ctx context.Context) (Feed, error)

	// Origin is this store instance's writer ID, stamped on its notices.
	Origin() string

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
