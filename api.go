package nearcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/nearcache/codec"
	"github.com/unkn0wn-root/nearcache/remote"
	"github.com/unkn0wn-root/nearcache/store"
	"github.com/unkn0wn-root/nearcache/track"
)

// LoaderFunc produces the value for a key on a full miss, typically from the
// system of record.
type LoaderFunc[V any] func(ctx context.Context, key string) (V, error)

// Mode selects how invalidation notices are matched against the local tier.
type Mode = track.Mode

const (
	// ModeTrackedKeys evicts only keys this instance populated. The default.
	ModeTrackedKeys = track.ModeTrackedKeys
	// ModeBroadcast evicts every key matching BroadcastPrefixes.
	ModeBroadcast = track.ModeBroadcast
)

// Cache is the high-level two-tier read-through API. Reads try the
// in-process tier, then the shared remote tier, then the loader, and write
// the loaded value back to both tiers on the way out. V is the caller's
// value type; serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// GetOrLoad returns the value for key, consulting local then remote and
	// calling load only when both miss. Remote-tier failures are retried and
	// then degrade to a miss, so a *LoaderError is the only error a healthy
	// cache returns.
	GetOrLoad(ctx context.Context, key string, load LoaderFunc[V]) (V, error)

	// Set writes through: remote tier first (with its invalidation notice),
	// then local. ttl 0 means Options.DefaultTTL. On a remote write failure
	// the local tier is left untouched and a *WriteError is returned.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Invalidate removes key everywhere: the local copy, the remote copy,
	// and, via notice, every peer's local copy. Reports whether the remote
	// delete actually removed an entry.
	Invalidate(ctx context.Context, key string) (bool, error)

	// IsCached reports whether key is present in either tier without
	// loading. The remote probe checks existence only; it can answer true
	// for an entry a read would already treat as expired.
	IsCached(ctx context.Context, key string) bool

	// Flush drops every local entry and returns how many were removed.
	// The remote tier and the peers are untouched.
	Flush() int

	// Stats returns a point-in-time activity snapshot.
	Stats() Stats

	// Ping checks remote-tier connectivity. Local-only caches return nil.
	Ping(ctx context.Context) error
}

// Options tune the generic cache. Only Codec is required; a nil Remote runs
// the cache local-only (TTL expiry still applies, peer invalidation does
// not).
type Options[V any] struct {
	// Required
	Codec c.Codec[V]

	// Remote is the shared tier, already bound to its namespace.
	Remote remote.Store

	// Local overrides the in-process byte store.
	// nil => LRU map holding LocalMaxEntries.
	Local store.Store

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	DefaultTTL      time.Duration // 0 => 1h
	MaxAttempts     int           // tries per remote operation; 0 => 3
	BackoffBase     time.Duration // linear backoff step between tries; 0 => 100ms
	LocalMaxEntries int           // size of the default local store; 0 => 10_000
	MaxValueBytes   int           // per-entry payload cap; 0 => unlimited

	Mode              Mode     // notice matching; default ModeTrackedKeys
	BroadcastPrefixes []string // ModeBroadcast only; each must end with ':'
	MaxWatch          int      // tracked-key bound; 0 => 65536

	Disabled bool // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
