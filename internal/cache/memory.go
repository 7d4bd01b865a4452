package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/sentinelle/backend/internal/models"
)

// MemoryStore is a process-lifetime in-memory store. With maxEntries == 0 it
// grows without bound, matching the historical behavior; a positive bound
// switches on least-recently-used eviction.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type memoryEntry struct {
	fingerprint string
	judgment    models.Judgment
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*models.Judgment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}

	s.order.MoveToFront(elem)

	judgment := elem.Value.(*memoryEntry).judgment
	return &judgment, true
}

func (s *MemoryStore) Put(_ context.Context, fingerprint string, judgment *models.Judgment) {
	if judgment == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[fingerprint]; ok {
		elem.Value.(*memoryEntry).judgment = *judgment
		s.order.MoveToFront(elem)
		return
	}

	elem := s.order.PushFront(&memoryEntry{fingerprint: fingerprint, judgment: *judgment})
	s.entries[fingerprint] = elem

	if s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		s.evictOldest()
	}
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len()
}

// evictOldest must be called with s.mu held.
func (s *MemoryStore) evictOldest() {
	oldest := s.order.Back()
	if oldest == nil {
		return
	}

	s.order.Remove(oldest)
	delete(s.entries, oldest.Value.(*memoryEntry).fingerprint)
}
