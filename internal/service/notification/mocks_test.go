package notification

import (
	"context"
	"sync"

	"github.com/heartmarshall/satstream-ledger/internal/adapter/memory"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// repoMock delegates to a memory repository unless a Func field is set.
type repoMock struct {
	*memory.NotificationRepo

	CreateFunc          func(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	ExistsForStreamFunc func(ctx context.Context, streamID int64, typ domain.NotificationType) (bool, error)

	mu          sync.Mutex
	createCalls int
}

func (m *repoMock) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	return m.NotificationRepo.Create(ctx, n)
}

func (m *repoMock) ExistsForStream(ctx context.Context, streamID int64, typ domain.NotificationType) (bool, error) {
	if m.ExistsForStreamFunc != nil {
		return m.ExistsForStreamFunc(ctx, streamID, typ)
	}
	return m.NotificationRepo.ExistsForStream(ctx, streamID, typ)
}

func (m *repoMock) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// streamsStub serves a fixed snapshot.
type streamsStub struct {
	streams []domain.Stream
}

func (s *streamsStub) Snapshot() []domain.Stream { return s.streams }

// chanSource is an eventSource over plain channels.
type chanSource struct {
	ch   chan domain.StreamEvent
	done chan struct{}
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan domain.StreamEvent, 8), done: make(chan struct{})}
}

func (s *chanSource) C() <-chan domain.StreamEvent { return s.ch }
func (s *chanSource) Done() <-chan struct{}        { return s.done }
