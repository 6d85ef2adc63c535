package recalc

import "sync"

// lockArena hands out one mutex per key. Entries are refcounted and dropped
// as soon as nobody holds or waits on them.
type lockArena struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newLockArena() *lockArena {
	return &lockArena{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (a *lockArena) Lock(key string) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[key]
	if !ok {
		l = &keyLock{}
		a.locks[key] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, key)
		}
		a.mu.Unlock()
	}
}

func (a *lockArena) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
