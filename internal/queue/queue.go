package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobMessage is what travels on the delivery queue: a pointer to a
// scheduled job, never the email itself.
type JobMessage struct {
	JobID int64 `json:"job_id"`
}

// Handler processes one message. A returned error asks for redelivery.
type Handler func(ctx context.Context, msg JobMessage) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, msg JobMessage) error
	// Subscribe blocks, feeding handler until ctx is done.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

var ErrNoSubscribers = errors.New("no subscribers")

// InMemoryQueue delivers in-process with retry. It backs single-binary
// setups and tests; nothing survives a restart.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
	wg       sync.WaitGroup
	closed   bool

	MaxRetries int
	RetryDelay time.Duration
	Log        *zap.Logger
}

type subscription struct {
	ctx     context.Context
	handler Handler
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]*subscription),
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Log:        log,
	}
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, msg JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed")
	}
	subs := q.handlers[topic]
	if len(subs) == 0 {
		return fmt.Errorf("%w for topic %s", ErrNoSubscribers, topic)
	}

	// round-robin is not needed for correctness; the first live subscriber wins
	sub := subs[0]
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.process(sub, msg)
	}()
	return nil
}

// process handles retries and errors
func (q *InMemoryQueue) process(sub *subscription, msg JobMessage) {
	for attempt := 1; ; attempt++ {
		err := sub.handler(sub.ctx, msg)
		if err == nil {
			return // ACK
		}
		if attempt > q.MaxRetries || sub.ctx.Err() != nil {
			q.Log.Warn("job dropped after retries",
				zap.Int64("job_id", msg.JobID), zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		q.Log.Debug("job failed, retrying",
			zap.Int64("job_id", msg.JobID), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(time.Duration(attempt) * q.RetryDelay):
		case <-sub.ctx.Done():
			return
		}
	}
}

// Subscribe adds a handler for a topic and removes it when ctx is done.
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	sub := &subscription{ctx: ctx, handler: handler}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	q.handlers[topic] = append(q.handlers[topic], sub)
	q.mu.Unlock()

	<-ctx.Done()

	q.mu.Lock()
	subs := q.handlers[topic]
	for i, s := range subs {
		if s == sub {
			q.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	return nil
}

// Close stops accepting messages and waits for in-flight deliveries.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
