// Package memory provides the in-memory identity store.
package memory

import (
	"hash/maphash"
	"sync"
	"time"

	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/core/ports"
)

const shardCount = 64

// IdentityStore is a sharded map of identity records. Shard locks only guard
// map membership; each record has its own mutex so mutations for one key
// never wait on another key.
type IdentityStore struct {
	seed   maphash.Seed
	shape  domain.RecordShape
	shards [shardCount]*shard
}

var _ ports.IdentityStore = (*IdentityStore)(nil)

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	rec     *domain.IdentityRecord
	removed bool
}

func New(shape domain.RecordShape) *IdentityStore {
	s := &IdentityStore{seed: maphash.MakeSeed(), shape: shape}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *IdentityStore) shard(key string) *shard {
	return s.shards[maphash.String(s.seed, key)%shardCount]
}

func (s *IdentityStore) WithRecord(key string, fn func(rec *domain.IdentityRecord)) {
	sh := s.shard(key)
	for {
		e := sh.getOrCreate(key, s.shape)
		e.mu.Lock()
		if e.removed {
			// Reaped between lookup and lock; retry against the live map.
			e.mu.Unlock()
			continue
		}
		fn(e.rec)
		e.mu.Unlock()
		return
	}
}

func (s *IdentityStore) Peek(key string) (domain.IdentityRecord, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return domain.IdentityRecord{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.IdentityRecord{}, false
	}
	return e.rec.Clone(), true
}

func (s *IdentityStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			e.mu.Lock()
			if e.rec.Idle(now) {
				e.removed = true
				delete(sh.entries, key)
				removed++
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *IdentityStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

func (sh *shard) getOrCreate(key string, shape domain.RecordShape) *entry {
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[key]; ok {
		return e
	}
	e = &entry{rec: domain.NewIdentityRecord(shape)}
	sh.entries[key] = e
	return e
}
