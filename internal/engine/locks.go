package engine

import (
	"sync"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
)

// keyedLocks serializes work per exercise key. Entries are dropped once no
// goroutine holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[domain.ExerciseKey]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[domain.ExerciseKey]*keyedLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedLocks) Lock(key domain.ExerciseKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
