package session

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSessions bounds the in-process store. A shop has a handful of
// admins; the bound keeps repeated logins from growing memory.
const DefaultMaxSessions = 256

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore keeps admin sessions in a bounded LRU. Sessions are lost on
// restart and the least recently used one is dropped when the store is full.
type MemoryStore struct {
	sessions *lru.Cache[string, memoryEntry]
	now      func() time.Time
}

func NewMemoryStore(maxSessions int) (*MemoryStore, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	sessions, err := lru.New[string, memoryEntry](maxSessions)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{sessions: sessions, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Data, bool) {
	entry, ok := s.sessions.Get(key)
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.sessions.Remove(key)
		return nil, false
	}
	data := entry.data
	return &data, true
}

func (s *MemoryStore) Set(_ context.Context, key string, data *Data, ttl time.Duration) {
	if key == "" || data == nil {
		return
	}
	s.sessions.Add(key, memoryEntry{data: *data, expiresAt: s.now().Add(ttl)})
}

func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.sessions.Remove(key)
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	return s.sessions.Len()
}

func (s *MemoryStore) Close() error {
	s.sessions.Purge()
	return nil
}
