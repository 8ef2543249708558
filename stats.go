package nearcache

import "sync/atomic"

// counters are the hot-path tallies, incremented atomically and snapshotted
// by Stats.
type counters struct {
	localHits      atomic.Uint64
	remoteHits     atomic.Uint64
	misses         atomic.Uint64
	loaderCalls    atomic.Uint64
	loaderFailures atomic.Uint64
	remoteErrors   atomic.Uint64
	writeFailures  atomic.Uint64
	invalidations  atomic.Uint64
	evictions      atomic.Uint64
	flushes        atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		LocalHits:      c.localHits.Load(),
		RemoteHits:     c.remoteHits.Load(),
		Misses:         c.misses.Load(),
		LoaderCalls:    c.loaderCalls.Load(),
		LoaderFailures: c.loaderFailures.Load(),
		RemoteErrors:   c.remoteErrors.Load(),
		WriteFailures:  c.writeFailures.Load(),
		Invalidations:  c.invalidations.Load(),
		Evictions:      c.evictions.Load(),
		Flushes:        c.flushes.Load(),
	}
}

// Stats is a point-in-time snapshot of cache activity since construction.
// Counters only ever grow; LocalEntries and Tracking describe the moment of
// the snapshot.
type Stats struct {
	LocalHits      uint64 // reads served by the in-process tier
	RemoteHits     uint64 // reads served by the shared tier
	Misses         uint64 // reads that fell through to the loader
	LoaderCalls    uint64
	LoaderFailures uint64
	RemoteErrors   uint64 // remote operations that kept failing after retries
	WriteFailures  uint64 // cache writes dropped after a value was produced
	Invalidations  uint64 // explicit Invalidate calls
	Evictions      uint64 // local entries removed by invalidation notices
	Flushes        uint64 // full local flushes, manual and fail-safe

	LocalEntries int  // current local tier size; -1 when the store cannot count
	Tracking     bool // invalidation subscription currently live
}

// Hits is the total over both tiers.
func (s Stats) Hits() uint64 { return s.LocalHits + s.RemoteHits }

// HitRate is Hits over all lookups, 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}
