package ledger

import (
	"context"
	"sync"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// eventRepoMock is a func-field mock of eventRepo.
type eventRepoMock struct {
	AppendFunc       func(ctx context.Context, events []domain.StreamEvent) error
	ListByStreamFunc func(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error)

	mu                sync.Mutex
	appendCalls       [][]domain.StreamEvent
	listByStreamCalls []int64
}

func (m *eventRepoMock) Append(ctx context.Context, events []domain.StreamEvent) error {
	m.mu.Lock()
	m.appendCalls = append(m.appendCalls, events)
	m.mu.Unlock()
	if m.AppendFunc == nil {
		panic("eventRepoMock.AppendFunc: not set")
	}
	return m.AppendFunc(ctx, events)
}

func (m *eventRepoMock) ListByStream(ctx context.Context, streamID int64, limit int) ([]domain.StreamEvent, error) {
	m.mu.Lock()
	m.listByStreamCalls = append(m.listByStreamCalls, streamID)
	m.mu.Unlock()
	if m.ListByStreamFunc == nil {
		panic("eventRepoMock.ListByStreamFunc: not set")
	}
	return m.ListByStreamFunc(ctx, streamID, limit)
}

func (m *eventRepoMock) AppendCalls() [][]domain.StreamEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls
}

func (m *eventRepoMock) ListByStreamCalls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listByStreamCalls
}
