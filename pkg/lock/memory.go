// Package lock provides per-key exclusive sections used to serialize inbound
// processing for a single (business, contact) pair.
package lock

import (
	"context"
	"sync"
)

// MemoryLocker serializes per key within a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()

	keyLock, ok := l.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		l.locks[key] = keyLock
	}

	l.mu.Unlock()

	keyLock.Lock()

	return keyLock.Unlock, nil
}
