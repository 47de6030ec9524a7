package cache

import (
	"context"
	"sync"
	"time"

	appcommission "github.com/marketplace/backend/internal/application/commission"
)

// dedupeEntry represents a marked dedupe key with expiration
type dedupeEntry struct {
	expiresAt time.Time
}

// InMemoryResolutionDedupe implements the bulk coordinator's dedupe fast
// path with an in-memory map. Suitable for single-instance deployments
// and testing; distributed deployments use RedisResolutionDedupe.
type InMemoryResolutionDedupe struct {
	mu        sync.RWMutex
	entries   map[string]dedupeEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryResolutionDedupe creates an in-memory dedupe store. It
// starts a background goroutine to clean up expired entries.
func NewInMemoryResolutionDedupe(ttl time.Duration) *InMemoryResolutionDedupe {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	store := &InMemoryResolutionDedupe{
		entries:  make(map[string]dedupeEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Seen reports whether the line item's dedupe key was already marked
func (s *InMemoryResolutionDedupe) Seen(ctx context.Context, lineItemRef, evaluatedAt string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[lineItemRef+":"+evaluatedAt]
	if !exists {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Mark records the dedupe key with the configured TTL
func (s *InMemoryResolutionDedupe) Mark(ctx context.Context, lineItemRef, evaluatedAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[lineItemRef+":"+evaluatedAt] = dedupeEntry{
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryResolutionDedupe) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryResolutionDedupe) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryResolutionDedupe) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

var _ appcommission.ResolutionDedupe = (*InMemoryResolutionDedupe)(nil)
