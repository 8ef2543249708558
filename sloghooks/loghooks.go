// Package sloghooks logs cache hook events through log/slog, with sampling
// for the chatty ones and key redaction for everything that names a key.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/nearcache"
)

type Options struct {
	// Log every Nth event for the chatty hooks; 0/1 logs all of them.
	SelfHealEvery    uint64
	WriteFailedEvery uint64
	// Redact rewrites keys before they reach the log. Nil redacts to a
	// SHA-256 prefix, so keys that embed user IDs stay out of log storage.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr    atomic.Uint64
	writeFailedCtr atomic.Uint64
}

var _ nearcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(key, tier, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("nearcache.self_heal",
		"key", h.redact(key),
		"tier", tier,
		"reason", reason)
}

func (h *Hooks) RemoteDegraded(op, key string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("nearcache.remote_degraded",
		"op", op,
		"key", h.redact(key),
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) WriteFailed(tier, key string, err error) {
	if h.l == nil || !sample(h.opts.WriteFailedEvery, &h.writeFailedCtr) {
		return
	}
	h.l.Warn("nearcache.write_failed",
		"tier", tier,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SubscriptionLost(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("nearcache.subscription_lost",
		"err", err,
		"msg", "local tier flushed; entries are TTL-only until resubscribed")
}

func (h *Hooks) SubscriptionResumed(attempts int) {
	if h.l == nil {
		return
	}
	h.l.Info("nearcache.subscription_resumed",
		"attempts", attempts)
}

func (h *Hooks) LocalFlushed(reason string, dropped int) {
	if h.l == nil {
		return
	}
	h.l.Warn("nearcache.local_flushed",
		"reason", reason,
		"dropped", dropped)
}
