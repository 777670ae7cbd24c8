package ingest

import "sync"

// store is a mutex-guarded map whose LoadOrCreate runs the constructor at
// most once per key, so concurrent handlers never race to create a record.
type store[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

func newStore[V any]() *store[V] {
	return &store[V]{m: make(map[string]V)}
}

// LoadOrCreate returns the value for key, calling create under the lock if
// the key is absent. created reports whether create ran.
func (s *store[V]) LoadOrCreate(key string, create func() V) (v V, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v, false
	}
	v = create()
	s.m[key] = v
	return v, true
}

func (s *store[V]) Load(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *store[V]) Store(key string, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

func (s *store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Values returns the current values in unspecified order.
func (s *store[V]) Values() []V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]V, 0, len(s.m))
	for _, v := range s.m {
		out = append(out, v)
	}
	return out
}
