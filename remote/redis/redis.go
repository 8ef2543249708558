// Package redis implements the remote tier on go-redis: one hash per key
// with payload, _cached_at and _ttl_ms fields, a PEXPIRE safety net, and
// pub/sub invalidation notices on <namespace>:inv. Mutations pipeline the
// write together with its notice so subscribers hear about every change.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/nearcache/internal/wire"
	"github.com/unkn0wn-root/nearcache/remote"
)

// Hash fields. Metadata fields carry the underscore prefix; a hash without
// _cached_at is not one of ours.
const (
	fieldPayload  = "payload"
	fieldCachedAt = "_cached_at"
	fieldTTL      = "_ttl_ms"
)

var ErrNilClient = errors.New("redis store: nil client")

type Store struct {
	rdb         goredis.UniversalClient
	ns          string
	origin      string
	closeClient bool
}

var _ remote.Store = (*Store)(nil)

type Config struct {
	Client goredis.UniversalClient

	// Namespace prefixes every key and names the notice channel
	// (<namespace>:inv). Required.
	Namespace string

	// Origin is the writer ID stamped on published notices. Auto-generated
	// when empty; set it only to make instances recognizable in logs.
	Origin string

	// CloseClient: set true only if this store exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Namespace == "" {
		return nil, errors.New("redis store: namespace is required")
	}
	origin := cfg.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Store{
		rdb:         cfg.Client,
		ns:          cfg.Namespace,
		origin:      origin,
		closeClient: cfg.CloseClient,
	}, nil
}

func (s *Store) key(k string) string { return s.ns + ":" + k }
func (s *Store) channel() string     { return s.ns + ":inv" }

func (s *Store) Origin() string { return s.origin }

func (s *Store) Fetch(ctx context.Context, key string) (remote.Record, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return remote.Record{}, false, err
	}
	if len(fields) == 0 {
		return remote.Record{}, false, nil // HGETALL on a missing key
	}
	rec, err := parseRecord(fields)
	if err != nil {
		return remote.Record{}, false, err
	}
	return rec, true, nil
}

func parseRecord(fields map[string]string) (remote.Record, error) {
	at, ok := fields[fieldCachedAt]
	if !ok {
		return remote.Record{}, fmt.Errorf("%w: missing %s", remote.ErrMalformed, fieldCachedAt)
	}
	atMs, err := strconv.ParseInt(at, 10, 64)
	if err != nil || atMs <= 0 {
		return remote.Record{}, fmt.Errorf("%w: bad %s %q", remote.ErrMalformed, fieldCachedAt, at)
	}

	ttl, ok := fields[fieldTTL]
	if !ok {
		return remote.Record{}, fmt.Errorf("%w: missing %s", remote.ErrMalformed, fieldTTL)
	}
	ttlMs, err := strconv.ParseInt(ttl, 10, 64)
	if err != nil || ttlMs < 0 {
		return remote.Record{}, fmt.Errorf("%w: bad %s %q", remote.ErrMalformed, fieldTTL, ttl)
	}

	payload, ok := fields[fieldPayload]
	if !ok {
		return remote.Record{}, fmt.Errorf("%w: missing %s", remote.ErrMalformed, fieldPayload)
	}

	return remote.Record{
		Payload:  []byte(payload),
		StoredAt: time.UnixMilli(atMs),
		TTL:      time.Duration(ttlMs) * time.Millisecond,
	}, nil
}

// Save writes the hash, arms the physical TTL and publishes the set notice
// in one pipeline. The physical expiry is a safety net; readers re-derive
// logical expiry from the metadata fields.
func (s *Store) Save(ctx context.Context, key string, rec remote.Record) error {
	if rec.TTL <= 0 {
		return errors.New("redis store: ttl must be positive")
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now()
	}

	k := s.key(key)
	notice := wire.EncodeNotice(wire.Notice{Op: wire.OpSet, Origin: s.origin, Key: key})

	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, k,
			fieldPayload, rec.Payload,
			fieldCachedAt, strconv.FormatInt(rec.StoredAt.UnixMilli(), 10),
			fieldTTL, strconv.FormatInt(rec.TTL.Milliseconds(), 10),
		)
		p.PExpire(ctx, k, rec.TTL)
		p.Publish(ctx, s.channel(), notice)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	notice := wire.EncodeNotice(wire.Notice{Op: wire.OpDel, Origin: s.origin, Key: key})

	var del *goredis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		del = p.Del(ctx, s.key(key))
		p.Publish(ctx, s.channel(), notice)
		return nil
	})
	if err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

// Exists probes the metadata field only, mirroring how records are
// recognized in Fetch.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	return s.rdb.HExists(ctx, s.key(key), fieldCachedAt).Result()
}

func (s *Store) Subscribe(ctx context.Context) (remote.Feed, error) {
	ps := s.rdb.Subscribe(ctx, s.channel())
	// confirm the subscription before handing the feed out
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	f := &feed{
		ps:     ps,
		events: make(chan remote.Notice, 64),
		quit:   make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// PoolStats exposes the client's connection pool counters (not part of
// remote.Store).
func (s *Store) PoolStats() *goredis.PoolStats {
	return s.rdb.PoolStats()
}

// Close releases the underlying client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// feed consumes one PubSub subscription. It uses Receive rather than
// ReceiveMessage so transport errors surface instead of being retried
// silently; a silent retry would swallow the gap during which notices were
// lost, and the subscriber must get to flush on such gaps.
type feed struct {
	ps      *goredis.PubSub
	events  chan remote.Notice
	quit    chan struct{}
	once    sync.Once
	dropped atomic.Uint64

	mu  sync.Mutex
	err error
}

var _ remote.Feed = (*feed)(nil)

func (f *feed) run() {
	defer close(f.events)
	ctx := context.Background()
	for {
		msg, err := f.ps.Receive(ctx)
		if err != nil {
			f.fail(err)
			return
		}
		m, ok := msg.(*goredis.Message)
		if !ok {
			continue // subscription confirmations, pongs
		}
		n, err := wire.DecodeNotice([]byte(m.Payload))
		if err != nil {
			f.dropped.Add(1) // foreign bytes on the channel
			continue
		}
		select {
		case f.events <- remote.Notice{Op: opFromWire(n.Op), Origin: n.Origin, Key: n.Key}:
		case <-f.quit:
			return
		}
	}
}

func (f *feed) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
}

func (f *feed) Events() <-chan remote.Notice { return f.events }

func (f *feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *feed) Close() error {
	f.once.Do(func() { close(f.quit) })
	return f.ps.Close()
}

// Dropped counts channel payloads rejected by wire validation.
func (f *feed) Dropped() uint64 { return f.dropped.Load() }

func opFromWire(op wire.Op) remote.Op {
	if op == wire.OpDel {
		return remote.OpDel
	}
	return remote.OpSet
}
