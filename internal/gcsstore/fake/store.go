// Package fake provides an in-memory ObjectStore for tests, adapted from
// the sharded-locking idiom of a plain keyed-map + single RWMutex, since
// object-level (not byte-range) locking is what the real store needs and
// the KeyedMutex is exercised separately.
package fake

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ehrlich-b/gcsblock/internal/interfaces"
	"github.com/ehrlich-b/gcsblock/internal/xerrors"
)

// Store is an in-memory ObjectStore. The zero value is not usable; use
// New. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// CallCounts, keyed by method name, tracks how many times each
	// ObjectStore method has been invoked, for test assertions.
	CallCounts map[string]int

	// FailNextGet, when non-nil, is returned by the next Get call and
	// then cleared. Lets a test inject a single transient error.
	FailNextGet error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects:    make(map[string][]byte),
		CallCounts: make(map[string]int),
	}
}

func (s *Store) count(name string) {
	s.CallCounts[name]++
}

// Get implements interfaces.ObjectStore.
func (s *Store) Get(_ context.Context, key string, offset, length int64) ([]byte, error) {
	s.mu.Lock()
	s.count("get")
	if s.FailNextGet != nil {
		err := s.FailNextGet
		s.FailNextGet = nil
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, xerrors.New("get", xerrors.CodeNotFound, "object not found: "+key)
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, xerrors.New("get", xerrors.CodeTransport, "offset out of range")
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

// Put implements interfaces.ObjectStore.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("put")
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

// List implements interfaces.ObjectStore.
func (s *Store) List(_ context.Context, prefix, startKey, endKey string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("list")

	var keys []string
	for k := range s.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if k < startKey || k >= endKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements interfaces.ObjectStore.
func (s *Store) Delete(_ context.Context, keys []string, onError func(key string, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("delete")

	for _, k := range keys {
		if _, ok := s.objects[k]; !ok {
			if onError != nil {
				onError(k, xerrors.New("delete", xerrors.CodeNotFound, "object not found: "+k))
			}
			continue
		}
		delete(s.objects, k)
	}
	return nil
}

// StatSize implements interfaces.ObjectStore.
func (s *Store) StatSize(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("stat")

	data, ok := s.objects[key]
	if !ok {
		return 0, false, nil
	}
	return int64(len(data)), true, nil
}

// ObjectCount returns the number of objects currently stored, for
// assertions like "trim decreases object count by exactly N".
func (s *Store) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

var _ interfaces.ObjectStore = (*Store)(nil)
