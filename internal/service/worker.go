package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclebandit/outreach-backend/internal/email"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
)

// DeliveryRepository defines the methods the worker needs
type DeliveryRepository interface {
	GetEnvelope(ctx context.Context, jobID int64) (*model.JobEnvelope, error)
	MarkSent(ctx context.Context, jobID int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, jobID int64, reason string) (bool, error)
}

type SenderProfiles interface {
	GetProfile(ctx context.Context, ownerID string) (*model.Profile, error)
}

// Worker delivers scheduled jobs handed to it by the queue.
type Worker struct {
	Jobs     DeliveryRepository
	Profiles SenderProfiles
	Mailer   email.Mailer
	Limiter  *rate.Limiter
	Log      *zap.Logger
	Now      func() time.Time
}

func NewWorker(jobs DeliveryRepository, profiles SenderProfiles, mailer email.Mailer, limiter *rate.Limiter, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Jobs:     jobs,
		Profiles: profiles,
		Mailer:   mailer,
		Limiter:  limiter,
		Log:      log,
		Now:      time.Now,
	}
}

// Handle adapts Deliver to the queue.
func (w *Worker) Handle(ctx context.Context, msg queue.JobMessage) error {
	return w.Deliver(ctx, msg.JobID)
}

// Deliver sends one job and records the outcome. Redelivered or unknown jobs
// are acknowledged without sending. A returned error means the outcome could
// not be recorded and the message should come back.
func (w *Worker) Deliver(ctx context.Context, jobID int64) error {
	log := w.Log.With(zap.Int64("job_id", jobID))

	env, err := w.Jobs.GetEnvelope(ctx, jobID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Warn("job vanished before delivery")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}
	if env.Job.Status.Delivered() {
		log.Debug("job already delivered", zap.String("status", string(env.Job.Status)))
		return nil
	}

	msg, err := w.render(ctx, env)
	if err != nil {
		return err
	}

	if w.Limiter != nil {
		if err := w.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if err := w.Mailer.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			// shutting down; the job stays queued and is released later
			return ctx.Err()
		}
		metrics.EmailFailures.Inc()
		log.Warn("email failed", zap.Int64("campaign_id", env.Job.CampaignID), zap.Error(err))
		if _, err := w.Jobs.MarkFailed(ctx, jobID, err.Error()); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	}

	changed, err := w.Jobs.MarkSent(ctx, jobID, w.Now())
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if changed {
		metrics.EmailsSent.Inc()
		log.Info("email sent", zap.Int64("campaign_id", env.Job.CampaignID), zap.String("to", msg.To))
	}
	return nil
}

// render fills lead and sender placeholders the same way the preview does.
func (w *Worker) render(ctx context.Context, env *model.JobEnvelope) (email.Message, error) {
	values := env.Recipient().Placeholders()
	if w.Profiles != nil {
		profile, err := w.Profiles.GetProfile(ctx, env.OwnerID)
		if err != nil {
			return email.Message{}, fmt.Errorf("load profile: %w", err)
		}
		if profile != nil {
			for k, v := range senderValues(profile.DisplayName, profile.CompanyName) {
				values[k] = v
			}
		}
	}
	return email.Message{
		To:      env.Job.Recipient,
		ToName:  env.Job.RecipientName,
		Subject: Substitute(env.Subject, values),
		Body:    stripMarker(Substitute(env.Body, values)),
	}, nil
}
