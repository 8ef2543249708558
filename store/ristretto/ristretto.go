// Package ristretto adapts dgraph-io/ristretto as a local store. Admission
// is cost-based and asynchronous: a Set may be rejected or not yet visible
// to an immediate Get. That is fine for a cache tier (a miss just re-reads
// the remote store), but tests that need deterministic occupancy should use
// the default lrumap store instead.
package ristretto

import (
	"errors"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/nearcache/store"
)

type Store struct {
	c *rc.Cache
}

var _ store.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(key string) ([]byte, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return nil, false
	}
	return b, true
}

func (s *Store) Set(key string, value []byte) bool {
	return s.c.Set(key, value, int64(len(value)))
}

func (s *Store) Del(key string) {
	s.c.Del(key)
}

// Flush drops all entries. Ristretto does not count entries, so the dropped
// total is unknown.
func (s *Store) Flush() int {
	s.c.Clear()
	return -1
}

// Len is unknown for ristretto.
func (s *Store) Len() int { return -1 }

func (s *Store) Close() error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto's own counters when enabled in Config.
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
