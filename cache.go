package nearcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/nearcache/codec"
	"github.com/unkn0wn-root/nearcache/local"
	"github.com/unkn0wn-root/nearcache/remote"
	"github.com/unkn0wn-root/nearcache/retry"
	"github.com/unkn0wn-root/nearcache/store/lrumap"
	"github.com/unkn0wn-root/nearcache/track"
)

const defaultTTL = time.Hour

// Tier names used in hooks and errors.
const (
	tierLocal  = "local"
	tierRemote = "remote"
	tierEncode = "encode"
)

const (
	reasonManual      = "manual"
	reasonValueDecode = "value_decode"
)

var errStoreRejected = errors.New("store rejected the write")

type cache[V any] struct {
	remote     remote.Store
	local      *local.Cache
	tracker    *track.Tracker
	codec      codec.Codec[V]
	log        Logger
	hooks      Hooks
	policy     *retry.Policy
	defaultTTL time.Duration
	enabled    bool
	stats      counters
	closed     atomic.Bool
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("nearcache: codec is required")
	}

	c := &cache[V]{
		remote:  opts.Remote,
		enabled: !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	c.policy = &retry.Policy{MaxAttempts: opts.MaxAttempts, BackoffBase: opts.BackoffBase}

	c.codec = opts.Codec
	if opts.MaxValueBytes > 0 {
		c.codec = codec.LimitCodec[V]{
			Inner:     opts.Codec,
			MaxEncode: opts.MaxValueBytes,
			MaxDecode: opts.MaxValueBytes,
		}
	}

	st := opts.Local
	if st == nil {
		st = lrumap.New(coalesce[int](opts.LocalMaxEntries, lrumap.DefaultMaxEntries))
	}
	c.local = local.New(st, func(key, reason string) {
		c.hooks.SelfHeal(key, tierLocal, reason)
	})

	if c.enabled && c.remote != nil {
		tr, err := track.New(track.Config{
			Source:   c.remote,
			Local:    c.local,
			Mode:     opts.Mode,
			Prefixes: opts.BroadcastPrefixes,
			MaxWatch: opts.MaxWatch,
			Backoff:  c.policy,
			On: track.Events{
				Lost: func(err error) {
					c.log.Warn("invalidation subscription lost", Fields{"err": err})
					c.hooks.SubscriptionLost(err)
				},
				Resumed: func(attempts int) {
					c.log.Info("invalidation subscription resumed", Fields{"attempts": attempts})
					c.hooks.SubscriptionResumed(attempts)
				},
				Flushed: func(reason string, dropped int) {
					c.stats.flushes.Add(1)
					c.log.Warn("local tier flushed", Fields{"reason": reason, "dropped": dropped})
					c.hooks.LocalFlushed(reason, dropped)
				},
				Evicted: func(key string, op remote.Op) {
					c.stats.evictions.Add(1)
					c.log.Debug("local entry evicted by notice", Fields{"key": key, "op": op.String()})
				},
			},
		})
		if err != nil {
			_ = c.local.Close()
			return nil, err
		}
		c.tracker = tr
	}

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.tracker != nil {
		c.tracker.Close()
	}
	_ = c.local.Close()
	if c.remote != nil {
		return c.remote.Close(ctx)
	}
	return nil
}

func (c *cache[V]) GetOrLoad(ctx context.Context, key string, load LoaderFunc[V]) (V, error) {
	var zero V
	if load == nil {
		return zero, fmt.Errorf("nearcache: loader is required")
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if !c.enabled {
		v, err := load(ctx, key)
		if err != nil {
			return zero, &LoaderError{Key: key, Err: err}
		}
		return v, nil
	}

	if v, ok := c.fromLocal(key); ok {
		c.stats.localHits.Add(1)
		return v, nil
	}

	if rec, ok := c.fromRemote(ctx, key); ok {
		if v, ok := c.decodeRemote(ctx, key, rec); ok {
			c.stats.remoteHits.Add(1)
			return v, nil
		}
	}

	c.stats.misses.Add(1)
	c.stats.loaderCalls.Add(1)
	v, err := load(ctx, key)
	if err != nil {
		c.stats.loaderFailures.Add(1)
		return zero, &LoaderError{Key: key, Err: err}
	}

	c.writeBack(ctx, key, v)
	return v, nil
}

// fromLocal consults the in-process tier. The tier itself self-heals expired
// and corrupt frames; a payload the current codec cannot decode is healed
// here.
func (c *cache[V]) fromLocal(key string) (V, bool) {
	var zero V
	rec, ok := c.local.Get(key)
	if !ok {
		return zero, false
	}
	v, err := c.codec.Decode(rec.Payload)
	if err != nil {
		c.local.Delete(key)
		c.hooks.SelfHeal(key, tierLocal, reasonValueDecode)
		return zero, false
	}
	return v, true
}

// fromRemote consults the shared tier with retries. Every failure mode maps
// to a miss: transient trouble after retries degrades, malformed records are
// deleted, records past their own TTL are deleted.
func (c *cache[V]) fromRemote(ctx context.Context, key string) (remote.Record, bool) {
	if c.remote == nil {
		return remote.Record{}, false
	}

	var rec remote.Record
	var found bool
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		r, ok, err := c.remote.Fetch(ctx, key)
		if err != nil {
			return err
		}
		rec, found = r, ok
		return nil
	}, c.retryOpts("fetch", key))
	if err != nil {
		switch {
		case errors.Is(err, remote.ErrMalformed):
			c.healRemote(ctx, key, local.ReasonCorrupt)
		case transient(err):
			c.degraded("fetch", key, err)
		}
		return remote.Record{}, false
	}
	if !found {
		return remote.Record{}, false
	}
	if rec.Expired(time.Now()) {
		c.healRemote(ctx, key, local.ReasonExpired)
		return remote.Record{}, false
	}
	return rec, true
}

// decodeRemote turns a remote hit into a value and mirrors it into the local
// tier, keeping the record's original clock so both tiers expire at the same
// instant.
func (c *cache[V]) decodeRemote(ctx context.Context, key string, rec remote.Record) (V, bool) {
	var zero V
	v, err := c.codec.Decode(rec.Payload)
	if err != nil {
		c.healRemote(ctx, key, reasonValueDecode)
		return zero, false
	}

	tracked := c.track(key)
	if ok := c.local.Put(key, local.Record{
		Payload:  rec.Payload,
		StoredAt: rec.StoredAt,
		TTL:      rec.TTL,
		Tracked:  tracked,
	}); !ok {
		c.stats.writeFailures.Add(1)
		c.hooks.WriteFailed(tierLocal, key, errStoreRejected)
	}
	return v, true
}

// writeBack stores a loaded value in both tiers, best effort: the caller
// already has the value, so nothing here may fail the read.
func (c *cache[V]) writeBack(ctx context.Context, key string, v V) {
	payload, err := c.codec.Encode(v)
	if err != nil {
		c.stats.writeFailures.Add(1)
		c.log.Error("encode for cache write failed", Fields{"key": key, "err": err})
		c.hooks.WriteFailed(tierEncode, key, err)
		return
	}

	stamp := time.Now()
	tracked := c.track(key)

	if c.remote != nil {
		rec := remote.Record{Payload: payload, StoredAt: stamp, TTL: c.defaultTTL}
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			return c.remote.Save(ctx, key, rec)
		}, c.retryOpts("save", key))
		if err != nil {
			c.stats.writeFailures.Add(1)
			if transient(err) {
				c.degraded("save", key, err)
			}
		}
	}

	if ok := c.local.Put(key, local.Record{
		Payload:  payload,
		StoredAt: stamp,
		TTL:      c.defaultTTL,
		Tracked:  tracked,
	}); !ok {
		c.stats.writeFailures.Add(1)
		c.hooks.WriteFailed(tierLocal, key, errStoreRejected)
	}
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	if ttl < 0 {
		return fmt.Errorf("nearcache: negative ttl for %q", key)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	payload, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("nearcache: encode %q: %w", key, err)
	}

	stamp := time.Now()
	tracked := c.track(key)

	if c.remote != nil {
		rec := remote.Record{Payload: payload, StoredAt: stamp, TTL: ttl}
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			return c.remote.Save(ctx, key, rec)
		}, c.retryOpts("save", key))
		if err != nil {
			c.stats.writeFailures.Add(1)
			if transient(err) {
				c.degraded("save", key, err)
			}
			// leave the local tier alone: peers heard no notice, and a
			// local-only copy could outlive a concurrent writer's update
			return &WriteError{Tier: tierRemote, Key: key, Err: err}
		}
	}

	if ok := c.local.Put(key, local.Record{
		Payload:  payload,
		StoredAt: stamp,
		TTL:      ttl,
		Tracked:  tracked,
	}); !ok {
		c.stats.writeFailures.Add(1)
		c.hooks.WriteFailed(tierLocal, key, errStoreRejected)
	}
	return nil
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.enabled {
		return false, nil
	}

	// local first, so this instance cannot serve the dying value while the
	// remote delete is in flight
	c.local.Delete(key)
	if c.tracker != nil {
		c.tracker.Forget(key)
	}
	c.stats.invalidations.Add(1)

	if c.remote == nil {
		return false, nil
	}

	var removed bool
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		r, err := c.remote.Delete(ctx, key)
		if err != nil {
			return err
		}
		removed = r
		return nil
	}, c.retryOpts("delete", key))
	if err != nil {
		if transient(err) {
			c.degraded("delete", key, err)
		}
		return false, &InvalidateError{Key: key, Err: err}
	}

	c.log.Debug("invalidated key", Fields{"key": key, "removed": removed})
	return removed, nil
}

func (c *cache[V]) IsCached(ctx context.Context, key string) bool {
	if c.closed.Load() || !c.enabled {
		return false
	}
	if c.local.Has(key) {
		return true
	}
	if c.remote == nil {
		return false
	}
	// single attempt; a presence probe is not worth retry latency
	ok, err := c.remote.Exists(ctx, key)
	if err != nil {
		c.log.Debug("remote existence probe failed", Fields{"key": key, "err": err})
		return false
	}
	return ok
}

func (c *cache[V]) Flush() int {
	if c.tracker != nil {
		c.tracker.Clear()
	}
	n := c.local.Flush()
	c.stats.flushes.Add(1)
	c.hooks.LocalFlushed(reasonManual, n)
	return n
}

func (c *cache[V]) Stats() Stats {
	s := c.stats.snapshot()
	s.LocalEntries = c.local.Len()
	if c.tracker != nil {
		s.Tracking = c.tracker.Active()
	}
	return s
}

func (c *cache[V]) Ping(ctx context.Context) error {
	if c.remote == nil {
		return nil
	}
	return c.remote.Ping(ctx)
}

// track registers key with the invalidation tracker and reports whether the
// entry about to be written is push-protected.
func (c *cache[V]) track(key string) bool {
	if c.tracker == nil {
		return false
	}
	return c.tracker.Track(key)
}

// healRemote deletes a remote record the read path refused to serve. The
// delete publishes a notice, so peers drop their copies of the bad record
// too.
func (c *cache[V]) healRemote(ctx context.Context, key, reason string) {
	_, _ = c.remote.Delete(ctx, key) // best effort
	c.hooks.SelfHeal(key, tierRemote, reason)
}

func (c *cache[V]) degraded(op, key string, err error) {
	c.stats.remoteErrors.Add(1)
	attempts := c.policy.Attempts()
	c.log.Warn("remote "+op+" degraded", Fields{"key": key, "attempts": attempts, "err": err})
	c.hooks.RemoteDegraded(op, key, attempts, err)
}

func (c *cache[V]) retryOpts(op, key string) *retry.Options {
	return &retry.Options{
		ShouldRetry: transient,
		OnRetry: func(attempt int, err error) {
			c.log.Debug("retrying remote "+op, Fields{"key": key, "attempt": attempt, "err": err})
		},
	}
}

// transient reports whether a remote error is worth another attempt.
// Cancellation is the caller's decision and malformed records will not
// unmarshal any better the second time.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, remote.ErrMalformed)
}
