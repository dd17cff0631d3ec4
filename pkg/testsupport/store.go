package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by MemoryStore for unknown entities.
var ErrNotFound = errors.New("testsupport: entity not found")

// FieldError is a store error carrying per-field messages.
type FieldError struct {
	Fields map[string][]string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("testsupport: %d field(s) rejected", len(e.Fields))
}

// FieldErrors returns the rejected fields keyed as the backend reported them.
func (e *FieldError) FieldErrors() map[string][]string {
	return e.Fields
}

// Patch records one call to MemoryStore.Patch.
type Patch struct {
	Entity string
	ID     string
	Values map[string]any
}

// MemoryStore is an in-memory entity store. Patches merge nested maps into
// the stored document.
type MemoryStore struct {
	mu       sync.Mutex
	entities map[string]map[string]map[string]any
	patches  []Patch
	failNext error
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[string]map[string]map[string]any)}
}

// Put stores a document under entity/id, replacing any previous one.
func (s *MemoryStore) Put(entity, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities[entity] == nil {
		s.entities[entity] = make(map[string]map[string]any)
	}
	s.entities[entity][id] = cloneDoc(doc)
}

// FailNext makes the next Patch or Create return err.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Patches returns the recorded patch calls.
func (s *MemoryStore) Patches() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Patch(nil), s.patches...)
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(ctx context.Context, entity, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.entities[entity][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
	}
	return cloneDoc(doc), nil
}

// Patch merges patch into the stored document.
func (s *MemoryStore) Patch(ctx context.Context, entity, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	doc, ok := s.entities[entity][id]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
	}
	merge(doc, patch)
	s.patches = append(s.patches, Patch{Entity: entity, ID: id, Values: cloneDoc(patch)})
	return nil
}

// Create stores values under a fresh uuid.
func (s *MemoryStore) Create(ctx context.Context, entity string, values map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if s.entities[entity] == nil {
		s.entities[entity] = make(map[string]map[string]any)
	}
	s.entities[entity][id] = cloneDoc(values)
	return id, nil
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func merge(dst, src map[string]any) {
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				merge(existing, nested)
				continue
			}
			dst[key] = cloneDoc(nested)
			continue
		}
		dst[key] = value
	}
}

func cloneDoc(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneDoc(nested)
			continue
		}
		out[key] = value
	}
	return out
}
