package service

import (
	"sort"
	"sync"
)

// KeyLocker hands out one mutex per string key.  Entries are reference
// counted and dropped once nobody holds or waits for them, so the map
// only grows with the number of keys in flight.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocker returns an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyEntry)}
}

// Lock acquires every key in sorted order and returns a function that
// releases them.  Duplicate keys are locked once.  Sorting gives all
// callers the same acquisition order, which rules out lock cycles.
func (l *KeyLocker) Lock(keys ...string) (unlock func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	entries := make([]*keyEntry, len(uniq))
	for i, k := range uniq {
		l.mu.Lock()
		e, ok := l.locks[k]
		if !ok {
			e = &keyEntry{}
			l.locks[k] = e
		}
		e.refs++
		l.mu.Unlock()
		e.mu.Lock()
		entries[i] = e
	}

	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			e := entries[i]
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, uniq[i])
			}
			l.mu.Unlock()
		}
	}
}

// size reports the number of live entries.
func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func classKey(id uint64) string { return "class:" + itoa(id) }
func userKey(id uint64) string  { return "user:" + itoa(id) }
