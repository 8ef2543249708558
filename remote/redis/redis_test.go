package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/nearcache/remote"
)

func setupStore(t *testing.T, origin string) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{
		Client:      client,
		Namespace:   "nc:test",
		Origin:      origin,
		CloseClient: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return mr, s
}

func storeOn(t *testing.T, mr *miniredis.Miniredis, origin string) *Store {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{
		Client:      client,
		Namespace:   "nc:test",
		Origin:      origin,
		CloseClient: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func waitNotice(t *testing.T, f remote.Feed) remote.Notice {
	t.Helper()
	select {
	case n, ok := <-f.Events():
		require.True(t, ok, "feed closed while waiting for a notice")
		return n
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a notice")
		return remote.Notice{}
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Namespace: "x"})
	assert.ErrorIs(t, err, ErrNilClient)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err = New(Config{Client: client})
	assert.Error(t, err)
}

func TestOriginAutoGenerated(t *testing.T) {
	mr := miniredis.RunT(t)
	a := storeOn(t, mr, "")
	b := storeOn(t, mr, "")

	assert.NotEmpty(t, a.Origin())
	assert.NotEmpty(t, b.Origin())
	assert.NotEqual(t, a.Origin(), b.Origin())
}

func TestSaveFetchRoundTrip(t *testing.T) {
	mr, s := setupStore(t, "origin-a")
	ctx := context.Background()

	storedAt := time.Now()
	err := s.Save(ctx, "roles:user123", remote.Record{
		Payload:  []byte(`{"role":"ADMIN"}`),
		StoredAt: storedAt,
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	rec, ok, err := s.Fetch(ctx, "roles:user123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"role":"ADMIN"}`), rec.Payload)
	assert.Equal(t, storedAt.UnixMilli(), rec.StoredAt.UnixMilli())
	assert.Equal(t, time.Hour, rec.TTL)

	// physical safety net is armed alongside the logical metadata
	assert.Greater(t, mr.TTL("nc:test:roles:user123"), time.Duration(0))
}

func TestFetchMiss(t *testing.T) {
	_, s := setupStore(t, "origin-a")

	_, ok, err := s.Fetch(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchMalformedRecord(t *testing.T) {
	mr, s := setupStore(t, "origin-a")

	mr.HSet("nc:test:bad", "junk", "x")

	_, ok, err := s.Fetch(context.Background(), "bad")
	assert.False(t, ok)
	assert.ErrorIs(t, err, remote.ErrMalformed)
}

func TestFetchMalformedMetadata(t *testing.T) {
	mr, s := setupStore(t, "origin-a")

	mr.HSet("nc:test:bad", "payload", "v", "_cached_at", "not-a-number", "_ttl_ms", "1000")

	_, ok, err := s.Fetch(context.Background(), "bad")
	assert.False(t, ok)
	assert.ErrorIs(t, err, remote.ErrMalformed)
}

func TestSaveRequiresPositiveTTL(t *testing.T) {
	_, s := setupStore(t, "origin-a")

	err := s.Save(context.Background(), "k", remote.Record{Payload: []byte("v")})
	assert.Error(t, err)
}

func TestDeleteReportsRemoval(t *testing.T) {
	_, s := setupStore(t, "origin-a")
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", remote.Record{Payload: []byte("v"), TTL: time.Minute}))

	removed, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed, "second delete had nothing to remove")
}

func TestExistsProbesMetadataOnly(t *testing.T) {
	_, s := setupStore(t, "origin-a")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "k", remote.Record{Payload: []byte("v"), TTL: time.Minute}))

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Delete(ctx, "k")
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeDeliversSetAndDelNotices(t *testing.T) {
	mr, a := setupStore(t, "origin-a")
	b := storeOn(t, mr, "origin-b")
	ctx := context.Background()

	f, err := a.Subscribe(ctx)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, b.Save(ctx, "roles:user123", remote.Record{Payload: []byte("v"), TTL: time.Minute}))

	n := waitNotice(t, f)
	assert.Equal(t, remote.OpSet, n.Op)
	assert.Equal(t, "origin-b", n.Origin)
	assert.Equal(t, "roles:user123", n.Key)

	_, err = b.Delete(ctx, "roles:user123")
	require.NoError(t, err)

	n = waitNotice(t, f)
	assert.Equal(t, remote.OpDel, n.Op)
	assert.Equal(t, "origin-b", n.Origin)
	assert.Equal(t, "roles:user123", n.Key)
}

func TestSubscriberHearsItsOwnWrites(t *testing.T) {
	_, s := setupStore(t, "origin-a")
	ctx := context.Background()

	f, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, s.Save(ctx, "k", remote.Record{Payload: []byte("v"), TTL: time.Minute}))

	n := waitNotice(t, f)
	assert.Equal(t, remote.OpSet, n.Op)
	assert.Equal(t, "origin-a", n.Origin, "own notices carry own origin for self-filtering")
}

func TestFeedDropsForeignBytes(t *testing.T) {
	mr, s := setupStore(t, "origin-a")
	ctx := context.Background()

	f, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer f.Close()

	mr.Publish("nc:test:inv", "not-a-wire-frame")

	// a valid notice published after the junk proves ordering: the junk was
	// dropped, not queued
	require.NoError(t, s.Save(ctx, "k", remote.Record{Payload: []byte("v"), TTL: time.Minute}))
	n := waitNotice(t, f)
	assert.Equal(t, "k", n.Key)

	impl := f.(*feed)
	assert.Equal(t, uint64(1), impl.Dropped())
}

func TestFeedCloseEndsEvents(t *testing.T) {
	_, s := setupStore(t, "origin-a")

	f, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.Close())

	select {
	case _, ok := <-f.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatalf("events channel did not close after Close")
	}
}

func TestFeedReportsSubscriptionLoss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{Client: client, Namespace: "nc:test", CloseClient: true})
	require.NoError(t, err)
	defer s.Close(context.Background())

	f, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	defer f.Close()

	mr.Close() // sever the server side

	select {
	case _, ok := <-f.Events():
		assert.False(t, ok, "events channel should close on loss")
	case <-time.After(5 * time.Second):
		t.Fatalf("feed did not notice the lost subscription")
	}
	assert.Error(t, f.Err())
}

func TestPing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{Client: client, Namespace: "nc:test", CloseClient: true})
	require.NoError(t, err)
	defer s.Close(context.Background())

	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
