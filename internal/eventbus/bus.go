// Package eventbus fans engine transition events out to in-process
// subscribers.
package eventbus

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("event bus closed")

const defaultBuffer = 256

// Bus is a publish/subscribe channel for domain.StreamEvent.
//
// Reliable subscribers apply back-pressure: Publish waits until they accept
// the event or unsubscribe. Lossy subscribers drop events when their buffer
// is full.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	log    *slog.Logger
}

// New creates an empty Bus.
func New(log *slog.Logger) *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
		log:  log.With("component", "eventbus"),
	}
}

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	Name   string
	Buffer int
	Lossy  bool
}

// Subscription receives events published after it was created.
type Subscription struct {
	name    string
	ch      chan domain.StreamEvent
	done    chan struct{}
	lossy   bool
	dropped atomic.Int64
	bus     *Bus
	once    sync.Once
}

// Subscribe registers a new subscriber. On a closed bus the returned
// subscription is already done.
func (b *Bus) Subscribe(opts SubscribeOptions) *Subscription {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	s := &Subscription{
		name:  opts.Name,
		ch:    make(chan domain.StreamEvent, opts.Buffer),
		done:  make(chan struct{}),
		lossy: opts.Lossy,
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.done) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber in registration-independent order.
// Events published by one goroutine reach each subscriber in publish order.
func (b *Bus) Publish(ev domain.StreamEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for s := range b.subs {
		if s.lossy {
			select {
			case s.ch <- ev:
			default:
				if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
					b.log.Warn("subscriber dropping events", "subscriber", s.name, "dropped", n)
				}
			}
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
	return nil
}

// Close stops the bus and ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// C returns the event channel. It is never closed; select on Done too.
func (s *Subscription) C() <-chan domain.StreamEvent { return s.ch }

// Done is closed when the subscription or its bus is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events a lossy subscriber has missed.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
	s.bus.remove(s)
}
