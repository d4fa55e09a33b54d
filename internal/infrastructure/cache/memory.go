package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cheapmatch/backend/internal/domain"
)

const cleanupInterval = 10 * time.Minute

// MemoryStore is a thread-safe in-memory result store.
// Entries last checked longer than the retention period ago are dropped by a
// background sweep; a zero retention keeps entries forever.
type MemoryStore struct {
	data      map[domain.CacheKey][]byte
	mutex     sync.RWMutex
	retention time.Duration
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewMemoryStore creates a new in-memory result store
func NewMemoryStore(retention time.Duration) *MemoryStore {
	store := &MemoryStore{
		data:      make(map[domain.CacheKey][]byte),
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
	}

	if retention > 0 {
		go store.cleanupExpired()
	}

	return store
}

// Get retrieves the entry for key
func (s *MemoryStore) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	s.mutex.RLock()
	raw, exists := s.data[key]
	s.mutex.RUnlock()

	if !exists {
		return nil, domain.ErrCacheMiss
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert stores the entry, replacing any previous entry for its key.
// UpdatedAt is set to a stamp strictly after the previous one.
func (s *MemoryStore) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	key := entry.Key()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var prevStamp time.Time
	if raw, exists := s.data[key]; exists {
		var prev domain.CacheEntry
		if err := json.Unmarshal(raw, &prev); err == nil {
			prevStamp = prev.UpdatedAt
		}
	}

	// Serialize so stored entries never alias caller memory; mimics Redis
	stored := *entry
	stored.UpdatedAt = domain.NextStamp(prevStamp, s.now())
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	raw, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	s.data[key] = raw
	entry.UpdatedAt = stored.UpdatedAt
	return nil
}

// Close stops the background sweep
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// cleanupExpired removes entries past the retention period periodically
func (s *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	cutoff := s.now().Add(-s.retention)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, raw := range s.data {
		var entry domain.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.LastChecked.Before(cutoff) {
			delete(s.data, key)
		}
	}
}

// Size returns the current number of entries (for debugging/monitoring)
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

// Clear removes all entries
func (s *MemoryStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = make(map[domain.CacheKey][]byte)
}
