// Package store defines the byte store behind the in-process cache tier.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte previously passed to Set for the key (no prepended or
// appended metadata, no re-encoding, no mutation). The local tier frames
// entries with a strict wire format and treats anything else as corruption,
// so a store that rewrites values will see its entries deleted on read.
//
// A store instance is owned by a single cache; keys are the caller's cache
// keys, unprefixed. Do not share one store between caches.
package store

// Store is a bounded in-process byte store, safe for concurrent use.
type Store interface {
	// Get returns (value, true) on hit; (nil, false) on miss. The returned
	// slice must not be mutated by the caller.
	Get(key string) ([]byte, bool)

	// Set stores value, evicting older entries when the store is full.
	// Returns false when the write was rejected under pressure.
	Set(key string, value []byte) bool

	// Del removes a key; absent keys are a no-op.
	Del(key string)

	// Flush drops all entries and returns how many were removed, or -1
	// when the store cannot count them.
	Flush() int

	// Len reports the current entry count, or -1 when unknown.
	Len() int

	// Close releases resources.
	Close() error
}
