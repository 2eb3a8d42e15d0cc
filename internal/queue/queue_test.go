package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func subscribe(t *testing.T, q *InMemoryQueue, topic string, h Handler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Subscribe(ctx, topic, h)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.handlers[topic]) > 0
	}, time.Second, 5*time.Millisecond)
	return func() {
		cancel()
		<-done
	}
}

func TestInMemoryQueueDelivers(t *testing.T) {
	q := NewInMemoryQueue(nil)

	var mu sync.Mutex
	got := []int64{}
	var wg sync.WaitGroup
	wg.Add(3)
	stop := subscribe(t, q, "jobs", func(ctx context.Context, msg JobMessage) error {
		mu.Lock()
		got = append(got, msg.JobID)
		mu.Unlock()
		wg.Done()
		return nil
	})

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, q.Publish(context.Background(), "jobs", JobMessage{JobID: id}))
	}
	wg.Wait()
	stop()
	require.NoError(t, q.Close())

	assert.ElementsMatch(t, []int64{1, 2, 3}, got)
}

func TestInMemoryQueueRetries(t *testing.T) {
	q := NewInMemoryQueue(nil)
	q.RetryDelay = time.Millisecond

	var calls atomic.Int32
	done := make(chan struct{})
	stop := subscribe(t, q, "jobs", func(ctx context.Context, msg JobMessage) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp unavailable")
		}
		close(done)
		return nil
	})

	require.NoError(t, q.Publish(context.Background(), "jobs", JobMessage{JobID: 7}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never succeeded")
	}
	stop()
	require.NoError(t, q.Close())
	assert.Equal(t, int32(3), calls.Load())
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	q := NewInMemoryQueue(nil)
	q.RetryDelay = time.Millisecond
	q.MaxRetries = 2

	var calls atomic.Int32
	stop := subscribe(t, q, "jobs", func(ctx context.Context, msg JobMessage) error {
		calls.Add(1)
		return errors.New("boom")
	})
	require.NoError(t, q.Publish(context.Background(), "jobs", JobMessage{JobID: 1}))
	require.NoError(t, q.Close())
	stop()

	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishWithoutSubscriber(t *testing.T) {
	q := NewInMemoryQueue(nil)
	err := q.Publish(context.Background(), "jobs", JobMessage{JobID: 1})
	assert.ErrorIs(t, err, ErrNoSubscribers)
	require.NoError(t, q.Close())
	assert.Error(t, q.Publish(context.Background(), "jobs", JobMessage{JobID: 1}))
}
