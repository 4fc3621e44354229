package testutil

import (
	"context"
	"sync"

	ierr "github.com/wellpath/wellpath/internal/errors"
)

// InMemoryStore is a thread-safe map-backed store the in-memory
// repositories build on. Snapshot/Restore give the in-memory unit of work
// rollback semantics.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}
}

func (s *InMemoryStore[T]) Create(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; exists {
		return ierr.NewErrorf("item with id %s already exists", id).Mark(ierr.ErrAlreadyExists)
	}
	s.items[id] = item
	return nil
}

func (s *InMemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, exists := s.items[id]
	if !exists {
		var zero T
		return zero, ierr.NewErrorf("item with id %s not found", id).Mark(ierr.ErrNotFound)
	}
	return item, nil
}

func (s *InMemoryStore[T]) Update(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return ierr.NewErrorf("item with id %s not found", id).Mark(ierr.ErrNotFound)
	}
	s.items[id] = item
	return nil
}

func (s *InMemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return ierr.NewErrorf("item with id %s not found", id).Mark(ierr.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// All returns every stored item in unspecified order.
func (s *InMemoryStore[T]) All(_ context.Context) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]T, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items
}

// Snapshot captures the current contents for a later Restore.
func (s *InMemoryStore[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]T, len(s.items))
	for id, item := range s.items {
		snapshot[id] = item
	}
	return snapshot
}

// Restore replaces the contents with a previously captured snapshot.
func (s *InMemoryStore[T]) Restore(snapshot map[string]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(snapshot))
	for id, item := range snapshot {
		s.items[id] = item
	}
}

// Clear empties the store.
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// snapshotter is the store surface the in-memory unit of work needs.
type snapshotter interface {
	snapshotAny() interface{}
	restoreAny(snapshot interface{})
}

func (s *InMemoryStore[T]) snapshotAny() interface{} {
	return s.Snapshot()
}

func (s *InMemoryStore[T]) restoreAny(snapshot interface{}) {
	s.Restore(snapshot.(map[string]T))
}

// InMemoryUnitOfWork implements types.UnitOfWork over in-memory stores by
// snapshotting every registered store before the transactional function
// runs and restoring all of them when it fails.
type InMemoryUnitOfWork struct {
	mu     sync.Mutex
	stores []snapshotter
}

func NewInMemoryUnitOfWork(stores ...snapshotter) *InMemoryUnitOfWork {
	return &InMemoryUnitOfWork{stores: stores}
}

// Register adds a store to the rollback set.
func (u *InMemoryUnitOfWork) Register(store snapshotter) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stores = append(u.stores, store)
}

func (u *InMemoryUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	snapshots := make([]interface{}, len(u.stores))
	for i, store := range u.stores {
		snapshots[i] = store.snapshotAny()
	}
	u.mu.Unlock()

	if err := fn(ctx); err != nil {
		u.mu.Lock()
		for i, store := range u.stores {
			store.restoreAny(snapshots[i])
		}
		u.mu.Unlock()
		return err
	}
	return nil
}
