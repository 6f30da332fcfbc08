// Package memory implements the repositories on in-process maps. It backs
// the "memory" database driver and engine tests.
package memory

import (
	"context"
	"sync"
)

// Store holds every table. Repositories are views over one Store so that
// TxManager can roll back writes across them.
type Store struct {
	mu            sync.Mutex
	streams       map[int64]streamRow
	nextStreamID  int64
	events        []eventRow
	nextEventID   int64
	notifications map[string]notificationRow
	templates     map[int64]templateRow
	nextTplID     int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		streams:       make(map[int64]streamRow),
		notifications: make(map[string]notificationRow),
		templates:     make(map[int64]templateRow),
	}
}

type journalKey struct{}

// journal collects undo steps for writes made inside RunInTx.
type journal struct {
	undo []func()
}

func (s *Store) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// TxManager runs a function with all-or-nothing semantics over a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a TxManager for s.
func NewTxManager(s *Store) *TxManager {
	return &TxManager{store: s}
}

// RunInTx executes fn. If fn fails or panics, every write it made through
// this store is undone in reverse order. Nested calls join the outer
// transaction.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	rollback := func() {
		m.store.mu.Lock()
		defer m.store.mu.Unlock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		rollback()
		return err
	}
	return nil
}
