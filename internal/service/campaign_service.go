// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// CampaignService owns the draft → approve → finalize → launch lifecycle of a
// campaign and the read side over its scheduled queue.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	BatchRepo    repository.BatchRepositoryInterface
	DraftRepo    repository.DraftRepositoryInterface
	JobRepo      repository.JobRepositoryInterface
	ProfileRepo  repository.ProfileRepositoryInterface
	Provider     provider.Provider
	Log          *zap.Logger

	DefaultCities     []string
	DefaultTimezone   string
	GenerationTimeout time.Duration
	Now               func() time.Time

	locks keyedMutex
}

type CreateCampaignRequest struct {
	BatchID   int64         `json:"batch_id"`
	Name      string        `json:"name"`
	Objective string        `json:"objective"`
	Persona   model.Persona `json:"persona"`
	Tones     []string      `json:"tones"`
	Cities    []string      `json:"cities"`
	Timezone  string        `json:"timezone"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

type DraftPreview struct {
	DraftID int64  `json:"draft_id"`
	LeadID  int64  `json:"lead_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CampaignService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// CreateCampaign starts a draft campaign over a batch. Objective, persona and
// tones fall back to the batch's when not given.
func (s *CampaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*model.Campaign, error) {
	if req.BatchID <= 0 {
		return nil, appErrors.NewValidationFailed("batch_id", "is required")
	}
	batch, err := s.BatchRepo.GetByID(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}

	c := &model.Campaign{
		BatchID:   batch.ID,
		OwnerID:   batch.OwnerID,
		Name:      strings.TrimSpace(req.Name),
		Status:    model.CampaignDraft,
		Objective: strings.TrimSpace(req.Objective),
		Persona:   req.Persona,
		Tones:     req.Tones,
		Cities:    req.Cities,
		Timezone:  req.Timezone,
	}
	if c.Name == "" {
		c.Name = batch.Name
	}
	if c.Objective == "" {
		c.Objective = batch.Objective
	}
	if c.Persona == "" {
		c.Persona = batch.Persona
	}
	if len(c.Tones) == 0 {
		c.Tones = batch.Tones
	}
	if !c.Persona.Valid() {
		return nil, appErrors.NewValidationFailed("persona", fmt.Sprintf("unknown persona %q", c.Persona))
	}
	if c.Timezone != "" {
		if _, err := resolveLocation(c.Timezone); err != nil {
			return nil, err
		}
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	s.logger().Info("campaign created", zap.Int64("campaign_id", c.ID), zap.Int64("batch_id", c.BatchID))
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	page, pageSize, offset := paginate(page, pageSize)

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}
	return campaigns, pagination(page, pageSize, total), nil
}

func paginate(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

func pagination(page, pageSize, total int) map[string]int {
	return map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int64) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// SetCampaignStatus pauses, resumes or completes a launched campaign. A
// campaign only leaves draft through Launch and never returns to it.
func (s *CampaignService) SetCampaignStatus(ctx context.Context, campaignID int64, status model.CampaignStatus) (*model.Campaign, error) {
	var from []model.CampaignStatus
	switch status {
	case model.CampaignActive:
		from = []model.CampaignStatus{model.CampaignPaused}
	case model.CampaignPaused:
		from = []model.CampaignStatus{model.CampaignActive}
	case model.CampaignCompleted:
		from = []model.CampaignStatus{model.CampaignActive, model.CampaignPaused}
	case model.CampaignDraft:
		return nil, appErrors.NewValidationFailed("status", "a campaign cannot return to draft")
	default:
		return nil, appErrors.NewValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}

	changed, err := s.CampaignRepo.TransitionStatus(ctx, campaignID, status, from...)
	if err != nil {
		return nil, err
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !changed && campaign.Status != status {
		if campaign.Status == model.CampaignDraft {
			return nil, appErrors.NewNotLaunched(campaignID, string(campaign.Status))
		}
		return nil, appErrors.NewValidationFailed("status",
			fmt.Sprintf("cannot move campaign from %s to %s", campaign.Status, status))
	}
	if changed {
		s.logger().Info("campaign status changed",
			zap.Int64("campaign_id", campaignID), zap.String("status", string(status)))
	}
	return campaign, nil
}

// PreviewDraft renders a draft for one lead of the campaign's batch.
func (s *CampaignService) PreviewDraft(ctx context.Context, draftID, leadID int64) (*DraftPreview, error) {
	draft, err := s.DraftRepo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	lead, err := s.BatchRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, draft.CampaignID)
	if err != nil {
		return nil, err
	}
	if lead.BatchID != campaign.BatchID {
		return nil, appErrors.NewValidationFailed("lead_id",
			fmt.Sprintf("lead %d is not in batch %d", lead.ID, campaign.BatchID))
	}

	values := lead.Placeholders()
	profile, err := s.ProfileRepo.GetProfile(ctx, campaign.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile != nil {
		for k, v := range senderValues(profile.DisplayName, profile.CompanyName) {
			values[k] = v
		}
	}

	rendered := SubstituteDraft(*draft, values)
	return &DraftPreview{
		DraftID: draft.ID,
		LeadID:  lead.ID,
		To:      lead.Email,
		Subject: rendered.Subject,
		Body:    stripMarker(rendered.Body),
	}, nil
}
