package job

import (
	"context"
	"sync"
	"time"
)

const memoryGCInterval = 5 * time.Minute

type memoryStore struct {
	records   map[string]Record
	mutex     sync.RWMutex
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewMemory builds an in-memory job store. Records not updated for
// retention are garbage collected.
func NewMemory(retention time.Duration) Store {
	if retention <= 0 {
		retention = time.Hour
	}
	s := &memoryStore{
		records:   make(map[string]Record),
		retention: retention,
		stop:      make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(memoryGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) cleanupExpired() {
	cutoff := time.Now().Add(-s.retention)
	s.mutex.Lock()
	for id, rec := range s.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
		}
	}
	s.mutex.Unlock()
}

func (s *memoryStore) Create(_ context.Context, id string, rec Record) error {
	rec.UpdatedAt = time.Now()
	s.mutex.Lock()
	s.records[id] = rec
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Update(_ context.Context, id string, rec Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = time.Now()
	if rec.Complete() && rec.CompletedAt.IsZero() {
		rec.CompletedAt = rec.UpdatedAt
	}
	s.records[id] = rec
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mutex.RLock()
	rec, ok := s.records[id]
	s.mutex.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
