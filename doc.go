// Package nearcache implements a two-tier read-through cache: a small
// in-process tier in front of a shared Redis tier, kept coherent by
// server-published invalidation notices instead of short TTLs.
//
// Components:
//   - store.Store: in-process byte store (sharded LRU map, Ristretto, BigCache).
//   - remote.Store: the shared tier plus its invalidation feed (Redis).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//
// Reads run local -> remote -> loader. Every mutation of the shared tier
// publishes a notice on its namespace channel; each instance subscribes and
// evicts the named key from its local tier, so a write on one replica is
// seen by the rest without waiting out the TTL. Records carry their own
// write time, both tiers re-check staleness against it, and a lost
// subscription flushes the local tier outright: the failure mode is extra
// loads, never stale reads from a tier that missed a notice.
//
// Read-through pattern:
//
//	cache, _ := nearcache.New[User](nearcache.Options[User]{
//		Codec:  codec.JSONCodec[User]{},
//		Remote: rstore, // remote/redis store bound to a namespace
//	})
//	u, err := cache.GetOrLoad(ctx, "user123", func(ctx context.Context, key string) (User, error) {
//		return readFromDB(ctx, key)
//	})
//
// Without a Remote the cache runs local-only: TTL expiry still applies, but
// nothing evicts entries when another process changes the data. Fit for
// single-instance deployments and tests, a documented risk anywhere else.
package nearcache
