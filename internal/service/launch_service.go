package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

type LaunchRequest struct {
	StartDate string `json:"start_date"`
	Timezone  string `json:"timezone"`
}

// LaunchResult is returned both for a fresh launch and for a repeated one;
// a repeat is not an error.
type LaunchResult struct {
	CampaignID      int64      `json:"campaign_id"`
	Launched        bool       `json:"launched"`
	AlreadyLaunched bool       `json:"already_launched"`
	JobsScheduled   int        `json:"jobs_scheduled"`
	Message         string     `json:"message"`
	Timezone        string     `json:"timezone,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	FirstSendAt     *time.Time `json:"first_send_at,omitempty"`
	LastSendAt      *time.Time `json:"last_send_at,omitempty"`
}

func alreadyLaunched(campaignID int64) *LaunchResult {
	metrics.CampaignLaunches.WithLabelValues("already_launched").Inc()
	return &LaunchResult{
		CampaignID:      campaignID,
		AlreadyLaunched: true,
		Message:         fmt.Sprintf("campaign %d was already launched; no new emails were scheduled", campaignID),
	}
}

// Launch turns the approved drafts into one scheduled job per (draft, lead)
// and activates the campaign. It runs at most once per campaign: the
// per-campaign lock covers this process and the launch claim row in the
// store covers every other.
func (s *CampaignService) Launch(ctx context.Context, campaignID int64, req LaunchRequest) (*LaunchResult, error) {
	unlock := s.locks.Lock(campaignID)
	defer unlock()

	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	log := s.logger().With(zap.Int64("campaign_id", campaignID))

	if campaign.Status != model.CampaignDraft {
		log.Info("launch skipped, campaign already launched", zap.String("status", string(campaign.Status)))
		return alreadyLaunched(campaignID), nil
	}
	launched, err := s.JobRepo.HasLaunched(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("check launch: %w", err)
	}
	if launched {
		return alreadyLaunched(campaignID), nil
	}

	loc, err := resolveLocation(req.Timezone, campaign.Timezone, s.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	start, err := ParseStartDate(req.StartDate, loc)
	if err != nil {
		return nil, err
	}
	if start.Before(s.now().Add(-startDateSkew)) {
		return nil, appErrors.NewValidationFailed("start_date", "must not be in the past")
	}

	_, drafts, err := s.finalizedDrafts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	leads, err := s.BatchRepo.ListLeads(ctx, campaign.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, appErrors.NewValidationFailed("leads", fmt.Sprintf("batch %d has no leads", campaign.BatchID))
	}

	jobs := PlanJobs(campaignID, drafts, leads, start, loc)
	ok, err := s.JobRepo.Launch(ctx, repository.LaunchPlan{
		CampaignID: campaignID,
		StartDate:  start,
		LaunchedAt: s.now(),
		Drafts:     drafts,
		Jobs:       jobs,
	})
	if err != nil {
		metrics.CampaignLaunches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("launch campaign %d: %w", campaignID, err)
	}
	if !ok {
		log.Info("launch lost to a concurrent launch")
		return alreadyLaunched(campaignID), nil
	}

	metrics.CampaignLaunches.WithLabelValues("launched").Inc()
	metrics.JobsScheduled.Add(float64(len(jobs)))
	log.Info("campaign launched",
		zap.Int("drafts", len(drafts)),
		zap.Int("leads", len(leads)),
		zap.Int("jobs", len(jobs)),
		zap.Time("start_date", start),
	)

	startUTC := start.UTC()
	first, last := jobs[0].ScheduledFor, jobs[0].ScheduledFor
	for _, j := range jobs[1:] {
		if j.ScheduledFor.Before(first) {
			first = j.ScheduledFor
		}
		if j.ScheduledFor.After(last) {
			last = j.ScheduledFor
		}
	}
	return &LaunchResult{
		CampaignID:    campaignID,
		Launched:      true,
		JobsScheduled: len(jobs),
		Message:       fmt.Sprintf("scheduled %d emails for %d leads", len(jobs), len(leads)),
		Timezone:      loc.String(),
		StartDate:     &startUTC,
		FirstSendAt:   &first,
		LastSendAt:    &last,
	}, nil
}

// PlanJobs fans drafts out over leads: one pending job per (draft, lead),
// each carrying a snapshot of the recipient.
func PlanJobs(campaignID int64, drafts []model.EmailDraft, leads []model.Lead, start time.Time, loc *time.Location) []model.ScheduledEmailJob {
	jobs := make([]model.ScheduledEmailJob, 0, len(drafts)*len(leads))
	for _, d := range drafts {
		at := ScheduleFor(start, d.SendDay, loc)
		for _, l := range leads {
			jobs = append(jobs, model.ScheduledEmailJob{
				CampaignID:    campaignID,
				DraftID:       d.ID,
				LeadID:        l.ID,
				Recipient:     l.Email,
				RecipientName: l.Name,
				ScheduledFor:  at,
				Status:        model.JobPending,
			})
		}
	}
	return jobs
}
