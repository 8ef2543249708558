package local

import (
	"bytes"
	"testing"
	"time"

	"github.com/unkn0wn-root/nearcache/store/lrumap"
)

func newTestCache(t *testing.T, onEvict EvictFunc) *Cache {
	t.Helper()
	c := New(lrumap.New(128), onEvict)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t, nil)

	in := Record{
		Payload:  []byte(`{"role":"ADMIN"}`),
		StoredAt: time.Now(),
		TTL:      time.Minute,
		Tracked:  true,
	}
	if !c.Put("roles:user123", in) {
		t.Fatalf("Put rejected")
	}

	got, ok := c.Get("roles:user123")
	if !ok {
		t.Fatalf("Get missed a fresh record")
	}
	if !bytes.Equal(got.Payload, in.Payload) {
		t.Fatalf("payload = %q, want %q", got.Payload, in.Payload)
	}
	if !got.Tracked {
		t.Fatalf("tracked flag lost in round trip")
	}
	if got.TTL != time.Minute {
		t.Fatalf("ttl = %v", got.TTL)
	}
}

func TestGetDetectsTTLExpiryLazily(t *testing.T) {
	c := newTestCache(t, nil)

	c.Put("k", Record{Payload: []byte("v"), TTL: time.Second})

	if _, ok := c.Get("k"); !ok {
		t.Fatalf("record should be fresh immediately after Put")
	}

	time.Sleep(1100 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("record past storedAt+ttl must read as absent")
	}
	// the dead entry was removed, not just skipped
	if c.Len() != 0 {
		t.Fatalf("Len = %d, expired entry not self-cleaned", c.Len())
	}
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	r := Record{StoredAt: time.Unix(1000, 0), TTL: time.Second}
	at := r.StoredAt.Add(r.TTL)
	if !r.Expired(at) {
		t.Fatalf("record must be absent at exactly storedAt+ttl")
	}
	if r.Expired(at.Add(-time.Nanosecond)) {
		t.Fatalf("record must be present just before storedAt+ttl")
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	var gotKey, gotReason string
	st := lrumap.New(16)
	c := New(st, func(key, reason string) { gotKey, gotReason = key, reason })
	t.Cleanup(func() { _ = c.Close() })

	st.Set("bad", []byte("not-a-frame"))

	if _, ok := c.Get("bad"); ok {
		t.Fatalf("corrupt entry must read as a miss")
	}
	if _, ok := st.Get("bad"); ok {
		t.Fatalf("corrupt entry was not deleted")
	}
	if gotKey != "bad" || gotReason != ReasonCorrupt {
		t.Fatalf("evict callback = (%q, %q)", gotKey, gotReason)
	}
}

func TestEvictCallbackOnExpiry(t *testing.T) {
	var reasons []string
	c := newTestCache(t, func(_, reason string) { reasons = append(reasons, reason) })

	c.Put("k", Record{Payload: []byte("v"), StoredAt: time.Now().Add(-time.Hour), TTL: time.Minute})
	if c.Has("k") {
		t.Fatalf("expired record must not satisfy Has")
	}
	if len(reasons) != 1 || reasons[0] != ReasonExpired {
		t.Fatalf("reasons = %v", reasons)
	}
}

func TestHasDoesNotRequirePayloadUse(t *testing.T) {
	c := newTestCache(t, nil)
	if c.Has("absent") {
		t.Fatalf("Has on empty cache")
	}
	c.Put("k", Record{Payload: []byte("v"), TTL: time.Minute})
	if !c.Has("k") {
		t.Fatalf("Has missed a fresh record")
	}
}

func TestReplaceIsFullOverwrite(t *testing.T) {
	c := newTestCache(t, nil)

	c.Put("k", Record{Payload: []byte("old"), TTL: time.Minute, Tracked: true})
	c.Put("k", Record{Payload: []byte("new"), TTL: time.Hour})

	got, ok := c.Get("k")
	if !ok || string(got.Payload) != "new" {
		t.Fatalf("Get = %q, %v", got.Payload, ok)
	}
	if got.Tracked {
		t.Fatalf("replacement must not inherit the old tracked flag")
	}
	if got.TTL != time.Hour {
		t.Fatalf("replacement must not inherit the old TTL: %v", got.TTL)
	}
}

func TestFlush(t *testing.T) {
	c := newTestCache(t, nil)
	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, Record{Payload: []byte(k), TTL: time.Minute})
	}
	if n := c.Flush(); n != 3 {
		t.Fatalf("Flush = %d, want 3", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after flush", c.Len())
	}
}
