package bulk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/repository"
)

// memoryStore is an in-memory RecordStore. uniqueField, when set, is enforced
// like a unique index.
type memoryStore struct {
	mu          sync.Mutex
	docs        map[string]map[string]interface{}
	seq         int
	uniqueField string

	createHook func(fields map[string]interface{}) error
	pingHook   func(call int) error

	mutations atomic.Int32
	pings     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]map[string]interface{})}
}

func (s *memoryStore) enter() func() {
	n := s.inFlight.Add(1)
	for {
		cur := s.maxFlight.Load()
		if n <= cur || s.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *memoryStore) CreateOne(_ context.Context, fields map[string]interface{}) (string, error) {
	defer s.enter()()
	s.mutations.Add(1)
	if s.createHook != nil {
		if err := s.createHook(fields); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uniqueField != "" {
		for _, doc := range s.docs {
			if doc[s.uniqueField] == fields[s.uniqueField] {
				return "", fmt.Errorf("%w: %s", repository.ErrDuplicate, s.uniqueField)
			}
		}
	}
	s.seq++
	id := fmt.Sprintf("id-%03d", s.seq)
	doc := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	s.docs[id] = doc
	return id, nil
}

func (s *memoryStore) UpdateByID(_ context.Context, id string, fields map[string]interface{}) error {
	defer s.enter()()
	s.mutations.Add(1)

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
	defer s.enter()()
	s.mutations.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *memoryStore) Ping(context.Context) error {
	call := int(s.pings.Add(1))
	if s.pingHook != nil {
		return s.pingHook(call)
	}
	return nil
}

func (s *memoryStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.docs))
	for id := range s.docs {
		out = append(out, id)
	}
	return out
}

func (s *memoryStore) doc(id string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}
