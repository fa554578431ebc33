package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// memoryStore implements Store using an in-memory map.
type memoryStore struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
}

// NewMemoryStore creates an in-memory store.
//
// Useful for testing or when persistence is not needed.
func NewMemoryStore() Store {
	return &memoryStore{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Store.Get.
func (s *memoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok || expired(e.expires, s.now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Put implements Store.Put.
func (s *memoryStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete implements Store.Delete.
func (s *memoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.entries, key)
	return nil
}

// Purge implements Store.Purge.
func (s *memoryStore) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if expired(e.expires, now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.Close.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}
