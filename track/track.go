// Package track keeps the local tier coherent with the shared store. A
// background goroutine consumes the store's invalidation feed and evicts
// matching local entries; when the feed is lost the whole local tier is
// flushed immediately (false misses are cheap, stale hits are not) and the
// subscription is rebuilt with backoff. The tracker never runs on a
// request-serving goroutine and mutates the local tier only through the same
// synchronized cache the foreground uses.
package track

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/nearcache/local"
	"github.com/unkn0wn-root/nearcache/remote"
	"github.com/unkn0wn-root/nearcache/retry"
)

// Mode selects which notices act on the local tier.
type Mode uint8

const (
	// ModeTrackedKeys acts only on keys this process has populated since
	// the last flush. The default.
	ModeTrackedKeys Mode = iota
	// ModeBroadcast acts on every notice whose key matches one of the
	// configured prefixes, fetched locally or not.
	ModeBroadcast
)

// Flush reasons handed to Events.Flushed.
const (
	ReasonLost        = "subscription_lost"
	ReasonReconnected = "reconnected"
	ReasonOverflow    = "watch_overflow"
)

const (
	defaultMaxWatch = 1 << 16
	reconnectCap    = 30 * time.Second
)

// Source is the slice of the remote store the tracker needs.
type Source interface {
	Subscribe(ctx context.Context) (remote.Feed, error)
	Origin() string
}

// Events are optional callbacks into the owner. All must be cheap and
// non-blocking; they run on the tracker goroutine.
type Events struct {
	Lost    func(err error)
	Resumed func(attempts int)
	Flushed func(reason string, dropped int)
	Evicted func(key string, op remote.Op)
}

type Config struct {
	Source Source
	Local  *local.Cache
	Mode   Mode

	// Prefixes filter notices in ModeBroadcast. Each must end with ':'.
	Prefixes []string

	// MaxWatch bounds the tracked-key set. Overflow flushes everything,
	// the same fail-safe as a lost feed. 0 => 65536.
	MaxWatch int

	// Backoff paces resubscription attempts (linear, capped at 30s).
	Backoff *retry.Policy

	On Events
}

type Tracker struct {
	src      Source
	origin   string
	lc       *local.Cache
	mode     Mode
	prefixes []string
	maxWatch int
	backoff  *retry.Policy
	on       Events

	mu     sync.Mutex
	watch  map[string]struct{}
	active bool
	feed   remote.Feed

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New validates the config and starts the subscription loop.
func New(cfg Config) (*Tracker, error) {
	if cfg.Source == nil {
		return nil, errors.New("track: source is required")
	}
	if cfg.Local == nil {
		return nil, errors.New("track: local cache is required")
	}
	if cfg.Mode == ModeBroadcast {
		if len(cfg.Prefixes) == 0 {
			return nil, errors.New("track: broadcast mode requires at least one prefix")
		}
		for _, p := range cfg.Prefixes {
			if !strings.HasSuffix(p, ":") {
				return nil, errors.New("track: broadcast prefixes must end with ':'")
			}
		}
	}

	maxWatch := cfg.MaxWatch
	if maxWatch <= 0 {
		maxWatch = defaultMaxWatch
	}

	t := &Tracker{
		src:      cfg.Source,
		origin:   cfg.Source.Origin(),
		lc:       cfg.Local,
		mode:     cfg.Mode,
		prefixes: cfg.Prefixes,
		maxWatch: maxWatch,
		backoff:  cfg.Backoff,
		on:       cfg.On,
		watch:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t, nil
}

// Track registers interest in a key that is about to be populated locally
// and reports whether that entry will be push-protected. False means the
// subscription is down (or the key is outside the broadcast prefixes) and
// the entry lives on TTL alone.
func (t *Tracker) Track(key string) bool {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return false
	}
	if t.mode == ModeBroadcast {
		t.mu.Unlock()
		return t.matches(key)
	}
	t.watch[key] = struct{}{}
	over := len(t.watch) > t.maxWatch
	t.mu.Unlock()

	if over {
		t.flushAll(ReasonOverflow)
	}
	return true
}

// Forget drops a key from the watch set (entry evicted or invalidated).
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	delete(t.watch, key)
	t.mu.Unlock()
}

// Clear empties the watch set without touching the local tier. The owner
// calls it when it flushes the local tier itself.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.watch = make(map[string]struct{})
	t.mu.Unlock()
}

// Active reports whether the subscription is currently live.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Close stops the loop and closes the live feed. Idempotent.
func (t *Tracker) Close() {
	t.once.Do(func() {
		close(t.stopCh)
		t.mu.Lock()
		f := t.feed
		t.mu.Unlock()
		if f != nil {
			_ = f.Close()
		}
		t.wg.Wait()
	})
}

func (t *Tracker) run() {
	defer t.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-t.stopCh:
			cancel()
		case <-done:
		}
	}()

	everConnected := false
	attempts := 0
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		feed, err := t.src.Subscribe(ctx)
		if err != nil {
			attempts++
			if retry.Sleep(ctx, t.reconnectDelay(attempts)) != nil {
				return
			}
			continue
		}

		t.mu.Lock()
		t.feed = feed
		t.active = true
		t.mu.Unlock()

		if everConnected || attempts > 0 {
			// notices may have been missed while disconnected; distrust
			// everything cached so far
			t.flushAll(ReasonReconnected)
			if everConnected && t.on.Resumed != nil {
				t.on.Resumed(attempts)
			}
		}
		everConnected = true
		attempts = 0

		t.consume(feed)

		t.mu.Lock()
		t.active = false
		t.feed = nil
		t.mu.Unlock()

		select {
		case <-t.stopCh:
			return
		default:
		}

		if t.on.Lost != nil {
			t.on.Lost(feed.Err())
		}
		t.flushAll(ReasonLost)

		attempts = 1
		if retry.Sleep(ctx, t.reconnectDelay(attempts)) != nil {
			return
		}
	}
}

func (t *Tracker) consume(feed remote.Feed) {
	for {
		select {
		case <-t.stopCh:
			return
		case n, ok := <-feed.Events():
			if !ok {
				return
			}
			t.handle(n)
		}
	}
}

func (t *Tracker) handle(n remote.Notice) {
	// Own notices are echoes of work this process already did: its set left
	// the fresh value in place, its delete already evicted locally.
	if n.Origin == t.origin {
		return
	}

	switch t.mode {
	case ModeBroadcast:
		if !t.matches(n.Key) {
			return
		}
	case ModeTrackedKeys:
		t.mu.Lock()
		_, watched := t.watch[n.Key]
		t.mu.Unlock()
		if !watched {
			return
		}
	}

	// The key stays watched: it names keys this process populated since the
	// last flush, so a later repopulate is still covered without re-racing
	// the feed.
	t.lc.Delete(n.Key)
	if t.on.Evicted != nil {
		t.on.Evicted(n.Key, n.Op)
	}
}

func (t *Tracker) matches(key string) bool {
	for _, p := range t.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (t *Tracker) flushAll(reason string) {
	t.Clear()
	dropped := t.lc.Flush()
	if t.on.Flushed != nil {
		t.on.Flushed(reason, dropped)
	}
}

func (t *Tracker) reconnectDelay(attempts int) time.Duration {
	d := t.backoff.Delay(attempts)
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}
