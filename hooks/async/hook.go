// Package asynchook moves hook work off the cache's hot paths onto a small
// worker pool. Events are dropped, never queued unboundedly, when the
// workers fall behind.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := nearcache.New[User](nearcache.Options[User]{
//	    Codec:  codec.JSONCodec[User]{},
//	    Remote: rstore,
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/nearcache"
)

type Hooks struct {
	inner nearcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ nearcache.Hooks = (*Hooks)(nil)

func New(inner nearcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, t, r string)       { h.try(func() { h.inner.SelfHeal(k, t, r) }) }
func (h *Hooks) SubscriptionLost(err error)    { h.try(func() { h.inner.SubscriptionLost(err) }) }
func (h *Hooks) SubscriptionResumed(n int)     { h.try(func() { h.inner.SubscriptionResumed(n) }) }
func (h *Hooks) WriteFailed(t, k string, err error) {
	h.try(func() { h.inner.WriteFailed(t, k, err) })
}
func (h *Hooks) RemoteDegraded(op, k string, n int, err error) {
	h.try(func() { h.inner.RemoteDegraded(op, k, n, err) })
}
func (h *Hooks) LocalFlushed(r string, n int) {
	h.try(func() { h.inner.LocalFlushed(r, n) })
}
