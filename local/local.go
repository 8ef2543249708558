// Package local implements the in-process cache tier: cache-record semantics
// (TTL staleness, tracked flag) layered over a pluggable byte store. Expiry
// is detected lazily on read and the dead entry removed on the spot, so no
// background sweeper is needed.
package local

import (
	"time"

	"github.com/unkn0wn-root/nearcache/internal/wire"
	"github.com/unkn0wn-root/nearcache/store"
)

// Eviction reasons passed to the EvictFunc callback.
const (
	ReasonExpired = "expired"
	ReasonCorrupt = "corrupt"
)

// Record is one local entry. Payload is the codec output for the cached
// value. StoredAt+TTL is the absolute expiry instant; an expired record is
// logically absent no matter how recently it was written. Tracked marks
// entries populated under a live invalidation subscription.
type Record struct {
	Payload  []byte
	StoredAt time.Time
	TTL      time.Duration
	Tracked  bool
}

// Expired reports whether the record is logically absent at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.StoredAt.Add(r.TTL))
}

// EvictFunc observes entries the cache removes on its own while reading
// (reason ReasonExpired or ReasonCorrupt). Must be cheap; called inline.
type EvictFunc func(key, reason string)

// Cache wraps a byte store with record framing and lazy TTL expiry.
// Safe for concurrent use as long as the underlying store is.
type Cache struct {
	s       store.Store
	onEvict EvictFunc
}

func New(s store.Store, onEvict EvictFunc) *Cache {
	return &Cache{s: s, onEvict: onEvict}
}

func (c *Cache) evicted(key, reason string) {
	if c.onEvict != nil {
		c.onEvict(key, reason)
	}
}

// Get returns the record for key if present and unexpired. Corrupt and
// expired entries are deleted before reporting a miss.
func (c *Cache) Get(key string) (Record, bool) {
	raw, ok := c.s.Get(key)
	if !ok {
		return Record{}, false
	}

	wr, err := wire.DecodeRecord(raw)
	if err != nil {
		c.s.Del(key) // self-heal foreign or torn bytes
		c.evicted(key, ReasonCorrupt)
		return Record{}, false
	}

	rec := Record{
		Payload:  wr.Payload,
		StoredAt: time.UnixMilli(wr.StoredAtMilli),
		TTL:      time.Duration(wr.TTLMillis) * time.Millisecond,
		Tracked:  wr.Flags&wire.FlagTracked != 0,
	}
	if rec.Expired(time.Now()) {
		c.s.Del(key)
		c.evicted(key, ReasonExpired)
		return Record{}, false
	}
	return rec, true
}

// Put frames and stores the record, replacing any previous entry for key
// atomically. A zero StoredAt is stamped with the current time. Returns
// false when the store rejected the write.
func (c *Cache) Put(key string, r Record) bool {
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now()
	}
	var flags byte
	if r.Tracked {
		flags |= wire.FlagTracked
	}
	return c.s.Set(key, wire.EncodeRecord(wire.Record{
		StoredAtMilli: r.StoredAt.UnixMilli(),
		TTLMillis:     r.TTL.Milliseconds(),
		Flags:         flags,
		Payload:       r.Payload,
	}))
}

func (c *Cache) Delete(key string) {
	c.s.Del(key)
}

// Has reports presence without handing out the payload. It runs the same
// lazy-expiry logic as Get, so a stale entry answers false and is removed.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Flush drops every entry and returns how many were removed (-1 when the
// store cannot count).
func (c *Cache) Flush() int {
	return c.s.Flush()
}

// Len reports the current entry count (-1 when the store cannot count).
func (c *Cache) Len() int {
	return c.s.Len()
}

func (c *Cache) Close() error {
	return c.s.Close()
}
