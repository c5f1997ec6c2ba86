package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
)

type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]interface{}
	seq     int
	pingErr error

	// failAfter > 0 fails creates once that many documents exist;
	// pingFailAfter > 0 fails every ping after that many
	failAfter     int
	pings         int
	pingFailAfter int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]map[string]interface{})}
}

func (s *memoryStore) CreateOne(_ context.Context, fields map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.docs) >= s.failAfter {
		return "", errors.New("connection reset by peer")
	}
	s.seq++
	id := fmt.Sprintf("doc-%d", s.seq)
	s.docs[id] = fields
	return id, nil
}

func (s *memoryStore) UpdateByID(_ context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *memoryStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *memoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	if s.pingFailAfter > 0 && s.pings > s.pingFailAfter {
		return errors.New("no reachable servers")
	}
	return s.pingErr
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type memoryProvider map[models.Entity]*memoryStore

func newMemoryProvider() memoryProvider {
	p := memoryProvider{}
	for _, e := range models.Entities {
		p[e] = newMemoryStore()
	}
	return p
}

func (p memoryProvider) Store(entity models.Entity) (repository.RecordStore, error) {
	s, ok := p[entity]
	if !ok {
		return nil, errors.New("no store")
	}
	return s, nil
}

type metricsCall struct {
	entity, operation, outcome string
	processed, failed          int
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (m *recordingMetrics) RecordBulkRun(_ context.Context, entity, operation, outcome string, processed, failed int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{entity, operation, outcome, processed, failed})
	return nil
}
