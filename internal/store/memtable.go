package store

import (
	"sync"
	"time"

	"github.com/loganszeto/respcache/internal/util"
)

type entry struct {
	v         []byte
	expiresAt time.Time
}

type MemTable struct {
	mu    sync.RWMutex
	m     map[string]entry
	clock util.Clock
}

type Options struct {
	// Clock defaults to util.RealClock.
	Clock util.Clock
}

func NewMemTable(opts Options) *MemTable {
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MemTable{
		m:     make(map[string]entry),
		clock: clock,
	}
}

func (t *MemTable) Get(key string) ([]byte, bool) {
	now := t.clock.Now()
	t.mu.RLock()
	ent, ok := t.m[key]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if IsExpired(ent.expiresAt, now) {
		t.evict(key, now)
		return nil, false
	}
	out := make([]byte, len(ent.v))
	copy(out, ent.v)
	return out, true
}

// evict removes key only if it is still expired once the write lock is
// held; a Set may have replaced it in between.
func (t *MemTable) evict(key string, now time.Time) {
	t.mu.Lock()
	if ent, ok := t.m[key]; ok && IsExpired(ent.expiresAt, now) {
		delete(t.m, key)
	}
	t.mu.Unlock()
}

func (t *MemTable) Set(key string, value []byte, ttl time.Duration) {
	buf := make([]byte, len(value))
	copy(buf, value)
	expiresAt := ExpiresAt(t.clock.Now(), ttl)
	t.mu.Lock()
	t.m[key] = entry{v: buf, expiresAt: expiresAt}
	t.mu.Unlock()
}

func (t *MemTable) Len() int {
	now := t.clock.Now()
	n := 0
	t.mu.RLock()
	for _, ent := range t.m {
		if !IsExpired(ent.expiresAt, now) {
			n++
		}
	}
	t.mu.RUnlock()
	return n
}

func (t *MemTable) RemoveExpired() int {
	now := t.clock.Now()
	removed := 0
	t.mu.Lock()
	for k, ent := range t.m {
		if IsExpired(ent.expiresAt, now) {
			delete(t.m, k)
			removed++
		}
	}
	t.mu.Unlock()
	return removed
}
