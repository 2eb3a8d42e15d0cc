package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limited wraps a Provider with a shared call rate limit and retries of
// transient failures. Retries stay inside the caller's deadline.
type Limited struct {
	inner   Provider
	limiter *rate.Limiter
	retries uint64
	log     *zap.Logger

	initialInterval time.Duration
}

func NewLimited(inner Provider, perSecond float64, retries uint64, log *zap.Logger) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limited{
		inner:           inner,
		limiter:         rate.NewLimiter(limit, 1),
		retries:         retries,
		log:             log,
		initialInterval: 500 * time.Millisecond,
	}
}

func (l *Limited) Name() string { return l.inner.Name() }

func (l *Limited) Generate(ctx context.Context, req Request) ([]RawDraft, error) {
	var drafts []RawDraft
	operation := func() error {
		if err := l.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := l.inner.Generate(ctx, req)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		drafts = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.initialInterval
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		l.log.Warn("provider call failed, retrying",
			zap.String("provider", l.inner.Name()),
			zap.Int64("campaign_id", req.CampaignID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, l.retries), ctx), notify); err != nil {
		return nil, err
	}
	return drafts, nil
}

var _ Provider = (*Limited)(nil)
