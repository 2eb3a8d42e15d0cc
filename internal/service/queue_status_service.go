package service

import (
	"context"
	"fmt"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// QueueStatus projects an active campaign's scheduled jobs into per-draft
// send groups. It is recomputed from the store on every call.
func (s *CampaignService) QueueStatus(ctx context.Context, campaignID int64) (*model.QueueStatus, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.NewNotLaunched(campaignID, "")
		}
		return nil, err
	}
	if campaign.Status != model.CampaignActive {
		return nil, appErrors.NewNotLaunched(campaignID, string(campaign.Status))
	}

	groups, err := s.JobRepo.QueueGroups(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("queue groups: %w", err)
	}
	return projectQueue(campaignID, groups), nil
}

func projectQueue(campaignID int64, groups []model.QueueGroup) *model.QueueStatus {
	status := &model.QueueStatus{CampaignID: campaignID, Groups: groups}
	for i := range groups {
		g := &groups[i]
		status.TotalPending += g.PendingCount
		if g.PendingCount > 0 && (status.NextFireAt == nil || g.ScheduledFor.Before(*status.NextFireAt)) {
			at := g.ScheduledFor
			status.NextFireAt = &at
		}
	}
	return status
}

// ListJobs pages through a campaign's scheduled jobs in send order.
func (s *CampaignService) ListJobs(ctx context.Context, campaignID int64, status string, page, pageSize int) ([]model.ScheduledEmailJob, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if status != "" {
		switch model.JobStatus(status) {
		case model.JobPending, model.JobQueued, model.JobSent, model.JobFailed:
		default:
			return nil, appErrors.NewValidationFailed("status", fmt.Sprintf("unknown job status %q", status))
		}
	}
	_, pageSize, offset := paginate(page, pageSize)
	return s.JobRepo.ListJobs(ctx, campaignID, status, offset, pageSize)
}
