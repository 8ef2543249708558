package nearcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths and from the subscription goroutine.
type Hooks interface {
	// An entry was deleted by the cache itself on read.
	// tier ∈ {"local", "remote"}; reason ∈ {"corrupt", "expired", "value_decode"}
	SelfHeal(key, tier, reason string)

	// A remote operation gave up after its attempts and the caller degraded
	// (fetch treated as a miss, save dropped, delete surfaced as error).
	// op ∈ {"fetch", "save", "delete"}
	RemoteDegraded(op, key string, attempts int, err error)

	// A cache write was dropped after the value was already produced.
	// tier ∈ {"local", "encode"}
	WriteFailed(tier, key string, err error)

	// The invalidation subscription dropped. The local tier is flushed
	// right after this fires; until resubscribed, new entries live on TTL
	// alone.
	SubscriptionLost(err error)

	// The subscription was rebuilt after that many attempts.
	SubscriptionResumed(attempts int)

	// The local tier was flushed in full.
	// reason ∈ {"subscription_lost", "reconnected", "watch_overflow", "manual"}
	LocalFlushed(reason string, dropped int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string, string)           {}
func (NopHooks) RemoteDegraded(string, string, int, error) {}
func (NopHooks) WriteFailed(string, string, error)         {}
func (NopHooks) SubscriptionLost(error)                    {}
func (NopHooks) SubscriptionResumed(int)                   {}
func (NopHooks) LocalFlushed(string, int)                  {}
