package reconcile

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex serializes work per key. Reconciliation runs for the same
// booth must not interleave, but different booths can reconcile in
// parallel. Entries are reference counted and removed once the last
// holder unlocks, so the map stays bounded by concurrent activity.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[uuid.UUID]*lockEntry{}}
}

// Lock acquires the mutex for key and returns the matching unlock
// function.
func (k *KeyedMutex) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
