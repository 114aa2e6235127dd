// Package keylock provides per-key advisory locking for goroutines that
// must serialize work on the same logical entity (a document, a chat
// session) without serializing work on unrelated entities.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

// Map is a set of independent mutexes keyed by uuid, created lazily and
// never removed — the number of distinct keys over a process lifetime is
// bounded by the number of distinct entities it touches.
type Map struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New constructs an empty Map.
func New() *Map {
	return &Map{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until available, and returns an
// unlock function to be deferred by the caller.
func (m *Map) Lock(key uuid.UUID) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
