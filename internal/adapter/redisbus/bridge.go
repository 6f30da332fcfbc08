// Package redisbus forwards engine events to Redis: Pub/Sub for live
// listeners and a capped stream for replay.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// client is the subset of *redis.Client the bridge uses.
type client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type eventSource interface {
	C() <-chan domain.StreamEvent
	Done() <-chan struct{}
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Bridge publishes every event it receives. Delivery is best-effort.
type Bridge struct {
	client client
	prefix string
	maxLen int64
	log    *slog.Logger
	failed atomic.Int64
}

// NewBridge creates a Bridge.
func NewBridge(log *slog.Logger, c client, cfg config.RedisConfig) *Bridge {
	return &Bridge{
		client: c,
		prefix: cfg.ChannelPrefix,
		maxLen: cfg.StreamMaxLen,
		log:    log.With("component", "redisbus"),
	}
}

type payload struct {
	Seq         int64     `json:"seq"`
	Type        string    `json:"type"`
	StreamID    int64     `json:"stream_id"`
	Actor       string    `json:"actor,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Fee         int64     `json:"fee,omitempty"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Status      string    `json:"status"`
	Rate        int64     `json:"rate"`
	TotalLocked int64     `json:"total_locked"`
	Claimed     int64     `json:"claimed"`
	At          time.Time `json:"at"`
}

func encode(ev domain.StreamEvent) ([]byte, error) {
	return json.Marshal(payload{
		Seq:         ev.Seq,
		Type:        string(ev.Type),
		StreamID:    ev.StreamID,
		Actor:       string(ev.Actor),
		Amount:      ev.Amount,
		Fee:         ev.Fee,
		Sender:      string(ev.Stream.Sender),
		Recipient:   string(ev.Stream.Recipient),
		Status:      string(ev.Stream.Status),
		Rate:        ev.Stream.Rate,
		TotalLocked: ev.Stream.TotalLocked,
		Claimed:     ev.Stream.Claimed,
		At:          ev.At,
	})
}

// Channel returns the Pub/Sub channel for ev, e.g. "satstream:42:payment_claimed".
func (b *Bridge) Channel(ev domain.StreamEvent) string {
	return fmt.Sprintf("%s:%d:%s", b.prefix, ev.StreamID, strings.ToLower(string(ev.Type)))
}

// StreamKey returns the Redis stream every event is appended to.
func (b *Bridge) StreamKey() string {
	return b.prefix + ":events"
}

// Forward publishes ev on its channel and appends it to the event stream.
func (b *Bridge) Forward(ctx context.Context, ev domain.StreamEvent) error {
	data, err := encode(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}

	if err := b.client.Publish(ctx, b.Channel(ev), data).Err(); err != nil {
		return fmt.Errorf("publish event %d: %w", ev.Seq, err)
	}

	args := &redis.XAddArgs{
		Stream: b.StreamKey(),
		Values: map[string]any{
			"seq":       ev.Seq,
			"type":      string(ev.Type),
			"stream_id": ev.StreamID,
			"payload":   data,
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd event %d: %w", ev.Seq, err)
	}
	return nil
}

// Failed returns how many events could not be forwarded.
func (b *Bridge) Failed() int64 {
	return b.failed.Load()
}

// Run forwards events until ctx is cancelled or the source is closed.
func (b *Bridge) Run(ctx context.Context, src eventSource) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-src.Done():
			return nil
		case ev := <-src.C():
			if err := b.Forward(ctx, ev); err != nil {
				n := b.failed.Add(1)
				b.log.WarnContext(ctx, "forward event to redis",
					"stream_id", ev.StreamID,
					"event", ev.Type,
					"failed_total", n,
					"error", err,
				)
			}
		}
	}
}
