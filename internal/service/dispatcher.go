package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/queue"
)

type DispatchRepository interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ReleaseStale(ctx context.Context, queuedBefore time.Time) (int64, error)
	Release(ctx context.Context, ids []int64) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, msg queue.JobMessage) error
}

// Dispatcher moves due jobs of active campaigns onto the delivery queue.
// Claimed jobs that never reach a worker are put back after StaleAfter.
type Dispatcher struct {
	Jobs       DispatchRepository
	Queue      Publisher
	Topic      string
	Interval   time.Duration
	Batch      int
	StaleAfter time.Duration
	Log        *zap.Logger
	Now        func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Run ticks until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
			d.logger().Error("dispatch tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick does one pass and reports how many jobs were published.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.now()
	if d.StaleAfter > 0 {
		released, err := d.Jobs.ReleaseStale(ctx, now.Add(-d.StaleAfter))
		if err != nil {
			return 0, err
		}
		if released > 0 {
			d.logger().Warn("released stale queued jobs", zap.Int64("count", released))
		}
	}

	batch := d.Batch
	if batch <= 0 {
		batch = 100
	}
	ids, err := d.Jobs.ClaimDue(ctx, now, batch)
	if err != nil {
		return 0, err
	}

	published := 0
	var unpublished []int64
	for _, id := range ids {
		if err := d.Queue.Publish(ctx, d.Topic, queue.JobMessage{JobID: id}); err != nil {
			d.logger().Warn("publish failed", zap.Int64("job_id", id), zap.Error(err))
			unpublished = append(unpublished, id)
			continue
		}
		published++
	}
	if len(unpublished) > 0 {
		// a fresh context so shutdown does not strand them as queued
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := d.Jobs.Release(releaseCtx, unpublished); err != nil {
			return published, fmt.Errorf("release unpublished jobs: %w", err)
		}
	}
	if published > 0 {
		metrics.JobsDispatched.Add(float64(published))
		d.logger().Info("dispatched due jobs", zap.Int("count", published))
	}
	return published, nil
}
