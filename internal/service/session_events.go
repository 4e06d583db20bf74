package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudtrack/certprep/internal/config"
)

// SessionEventType names a session lifecycle transition.
type SessionEventType string

const (
	SessionEventStarted  SessionEventType = "started"
	SessionEventFinished SessionEventType = "finished"
	SessionEventReset    SessionEventType = "reset"
)

// SessionEvent is broadcast to live monitors.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id,omitempty"`
	ExamID    string           `json:"exam_id,omitempty"`
	Expired   bool             `json:"expired,omitempty"`
	Score     *int             `json:"score,omitempty"`
	Passed    *bool            `json:"passed,omitempty"`
	At        time.Time        `json:"at"`
}

// SessionEventBus fans session events out to subscribers. Subscribe yields
// encoded SessionEvent payloads until ctx ends or the returned close
// function is called.
type SessionEventBus interface {
	Publish(ctx context.Context, ev SessionEvent) error
	Subscribe(ctx context.Context) (<-chan []byte, func() error)
}

// RedisSessionEvents implements SessionEventBus over Redis Pub/Sub.
type RedisSessionEvents struct {
	rdb *redis.Client
}

// NewRedisSessionEvents creates a new RedisSessionEvents.
func NewRedisSessionEvents(rdb *redis.Client) *RedisSessionEvents {
	return &RedisSessionEvents{rdb: rdb}
}

func (b *RedisSessionEvents) Publish(ctx context.Context, ev SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	return b.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(), data).Err()
}

func (b *RedisSessionEvents) Subscribe(ctx context.Context) (<-chan []byte, func() error) {
	pubsub := b.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel())
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, pubsub.Close
}

// LocalSessionEvents is an in-process SessionEventBus. Slow subscribers miss
// events instead of blocking publishers.
type LocalSessionEvents struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewLocalSessionEvents creates a new LocalSessionEvents.
func NewLocalSessionEvents() *LocalSessionEvents {
	return &LocalSessionEvents{subs: make(map[chan []byte]struct{})}
}

func (b *LocalSessionEvents) Publish(_ context.Context, ev SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (b *LocalSessionEvents) Subscribe(ctx context.Context) (<-chan []byte, func() error) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	closeFn := func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
			close(done)
		})
		return nil
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = closeFn()
		case <-done:
		}
	}()
	return ch, closeFn
}
