// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is the in-process adapter: a map guarded by a RWMutex with
// expiry checked lazily on read. Suitable for single-process deployments
// and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	lists  map[string][]string
	sets   map[string]map[string]struct{}

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.values[key]
	if !ok {
		return "", false, nil
	}
	if entry.expired(s.now()) {
		delete(s.values, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = s.entry(value, ttl)
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.values[key]; ok && !existing.expired(s.now()) {
		return false, nil
	}
	s.values[key] = s.entry(value, ttl)
	return true, nil
}

func (s *MemoryStore) Append(_ context.Context, listKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[listKey] = append(s.lists[listKey], value)
	return nil
}

func (s *MemoryStore) GetList(_ context.Context, listKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[listKey]
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) SetAdd(_ context.Context, setKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sets[setKey] == nil {
		s.sets[setKey] = make(map[string]struct{})
	}
	s.sets[setKey][member] = struct{}{}
	return nil
}

func (s *MemoryStore) SetRemove(_ context.Context, setKey, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets[setKey], member)
	return nil
}

func (s *MemoryStore) SetMembers(_ context.Context, setKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[setKey]))
	for m := range s.sets[setKey] {
		members = append(members, m)
	}
	return members, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.lists, key)
	delete(s.sets, key)
	return nil
}

func (s *MemoryStore) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}
