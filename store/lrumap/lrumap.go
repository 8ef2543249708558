// Package lrumap is the default local store: a sharded, strictly bounded
// LRU map. Capacity is split across shards so unrelated keys never contend
// on one lock, and an insert into a full shard evicts that shard's least
// recently used entry. Small stores (< 64 entries) collapse to a single
// shard, which makes the LRU order global and the bound exact.
package lrumap

import (
	"container/list"
	"sync"

	"github.com/unkn0wn-root/nearcache/store"
)

const (
	DefaultMaxEntries = 10_000

	maxShards      = 16 // power of two; shardFor masks the hash
	shardThreshold = 64 // below this a single shard keeps the bound exact
)

type entry struct {
	key string
	val []byte
}

type shard struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
	cap   int
}

type Store struct {
	shards []*shard
	mask   uint32
}

var _ store.Store = (*Store)(nil)

// New builds a store holding at most ~maxEntries entries in total (exact for
// single-shard stores, per-shard rounding otherwise). maxEntries <= 0 uses
// DefaultMaxEntries.
func New(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	n := maxShards
	if maxEntries < shardThreshold {
		n = 1
	}
	perShard := (maxEntries + n - 1) / n

	s := &Store{
		shards: make([]*shard, n),
		mask:   uint32(n - 1),
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			items: make(map[string]*list.Element),
			order: list.New(),
			cap:   perShard,
		}
	}
	return s
}

// fnv-1a; inlined to avoid a hash.Hash allocation per call
func fnv32a(key string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= prime32
	}
	return h
}

func (s *Store) shard(key string) *shard { return s.shards[fnv32a(key)&s.mask] }

func (s *Store) Get(key string) ([]byte, bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.items[key]
	if !ok {
		return nil, false
	}
	sh.order.MoveToFront(el)
	return el.Value.(*entry).val, true
}

func (s *Store) Set(key string, value []byte) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[key]; ok {
		el.Value.(*entry).val = value
		sh.order.MoveToFront(el)
		return true
	}

	if len(sh.items) >= sh.cap {
		oldest := sh.order.Back()
		if oldest == nil {
			return false
		}
		sh.order.Remove(oldest)
		delete(sh.items, oldest.Value.(*entry).key)
	}

	sh.items[key] = sh.order.PushFront(&entry{key: key, val: value})
	return true
}

func (s *Store) Del(key string) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[key]; ok {
		sh.order.Remove(el)
		delete(sh.items, key)
	}
}

func (s *Store) Flush() int {
	dropped := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		dropped += len(sh.items)
		sh.items = make(map[string]*list.Element)
		sh.order.Init()
		sh.mu.Unlock()
	}
	return dropped
}

func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.items)
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) Close() error {
	s.Flush()
	return nil
}
