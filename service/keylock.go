package service

import "sync"

// keyLocks serializes operations per account key: at most one
// in-flight ledger operation per account, while different accounts
// proceed concurrently. This replaces the per-entity mailbox ordering
// an actor runtime would give us.
//
// Locks are never released from the map; the set of live accounts is
// assumed small enough that this does not matter.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
