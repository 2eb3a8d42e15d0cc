package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
)

type GenerateRequest struct {
	CampaignID  int64         `json:"-"`
	Objective   string        `json:"objective"`
	Persona     model.Persona `json:"persona"`
	Tones       []string      `json:"tones"`
	Cities      []string      `json:"cities"`
	AgentName   string        `json:"agent_name"`
	CompanyName string        `json:"company_name"`
}

type GenerateResult struct {
	CampaignID int64              `json:"campaign_id"`
	Generation int                `json:"generation"`
	Provider   string             `json:"provider"`
	Drafts     []model.EmailDraft `json:"drafts"`
}

// GenerateDrafts asks the provider for a fresh cadence and stores it as the
// campaign's new generation, discarding prior drafts and their approvals.
// Nothing is stored unless the provider answered in time with usable drafts.
func (s *CampaignService) GenerateDrafts(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.CampaignID <= 0 {
		return nil, appErrors.NewValidationFailed("campaign_id", "is required")
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignDraft {
		return nil, appErrors.NewAlreadyLaunched(campaign.ID)
	}

	if strings.TrimSpace(req.Objective) == "" {
		req.Objective = campaign.Objective
	}
	if req.Persona == "" {
		req.Persona = campaign.Persona
	}
	if len(req.Tones) == 0 {
		req.Tones = campaign.Tones
	}
	if len(req.Cities) == 0 {
		req.Cities = campaign.Cities
	}
	if len(req.Cities) == 0 {
		req.Cities = s.DefaultCities
	}
	req.Objective = strings.TrimSpace(req.Objective)
	if req.Objective == "" {
		return nil, appErrors.NewValidationFailed("objective", "is required")
	}
	if !req.Persona.Valid() {
		return nil, appErrors.NewValidationFailed("persona", fmt.Sprintf("unknown persona %q", req.Persona))
	}

	if req.AgentName == "" || req.CompanyName == "" {
		profile, err := s.ProfileRepo.GetProfile(ctx, campaign.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		if profile != nil {
			if req.AgentName == "" {
				req.AgentName = profile.DisplayName
			}
			if req.CompanyName == "" {
				req.CompanyName = profile.CompanyName
			}
		}
	}

	genCtx := ctx
	if s.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.GenerationTimeout)
		defer cancel()
	}

	log := s.logger().With(zap.Int64("campaign_id", campaign.ID), zap.String("provider", s.Provider.Name()))
	raw, err := s.Provider.Generate(genCtx, provider.Request{
		CampaignID:  campaign.ID,
		Objective:   req.Objective,
		Persona:     req.Persona,
		Tones:       req.Tones,
		Cities:      req.Cities,
		AgentName:   req.AgentName,
		CompanyName: req.CompanyName,
	})
	if err == nil && genCtx.Err() != nil {
		err = genCtx.Err()
	}
	if err != nil {
		metrics.GenerationFailures.Inc()
		log.Warn("draft generation failed", zap.Error(err))
		return nil, appErrors.NewGenerationFailed(campaign.ID, generationReason(err), err)
	}

	drafts, err := normalizeDrafts(raw, senderValues(req.AgentName, req.CompanyName))
	if err != nil {
		metrics.GenerationFailures.Inc()
		log.Warn("provider returned unusable drafts", zap.Error(err))
		return nil, appErrors.NewGenerationFailed(campaign.ID, "malformed payload", err)
	}

	stored, generation, err := s.DraftRepo.ReplaceDrafts(ctx, campaign.ID, drafts)
	if err != nil {
		return nil, err
	}

	metrics.DraftsGenerated.Add(float64(len(stored)))
	log.Info("drafts generated", zap.Int("generation", generation), zap.Int("drafts", len(stored)))
	return &GenerateResult{
		CampaignID: campaign.ID,
		Generation: generation,
		Provider:   s.Provider.Name(),
		Drafts:     stored,
	}, nil
}

func generationReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, provider.ErrMalformedPayload):
		return "malformed payload"
	case errors.Is(err, provider.ErrNotConfigured):
		return "provider not configured"
	}
	return "provider error"
}

// normalizeDrafts turns provider output into pending drafts in send order.
func normalizeDrafts(raw []provider.RawDraft, values map[string]string) ([]model.EmailDraft, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no drafts", provider.ErrMalformedPayload)
	}

	drafts := make([]model.EmailDraft, 0, len(raw))
	seen := map[string]bool{}
	for i, r := range raw {
		subject := strings.TrimSpace(r.Subject)
		body := strings.TrimSpace(r.Body)
		if subject == "" || body == "" {
			return nil, fmt.Errorf("%w: draft %d has an empty subject or body", provider.ErrMalformedPayload, i)
		}
		if r.SendDay < 0 {
			return nil, fmt.Errorf("%w: draft %d has negative send_day %d", provider.ErrMalformedPayload, i, r.SendDay)
		}

		category := strings.TrimSpace(r.CategoryID)
		if category == "" {
			category = positionID(r.SendDay, r.Order)
		}
		category = uniqueCategory(seen, category)

		month := r.MonthNumber
		if month <= 0 {
			month = r.SendDay/30 + 1
		}
		phase := strings.TrimSpace(r.MonthPhase)
		if phase == "" {
			phase = fmt.Sprintf("month_%d", month)
		}

		drafts = append(drafts, SubstituteDraft(model.EmailDraft{
			CategoryID:     category,
			Subject:        subject,
			Body:           body,
			SendDay:        r.SendDay,
			Order:          r.Order,
			MonthPhase:     phase,
			MonthNumber:    month,
			ApprovalStatus: model.ApprovalPending,
		}, values))
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		if drafts[i].SendDay != drafts[j].SendDay {
			return drafts[i].SendDay < drafts[j].SendDay
		}
		return drafts[i].Order < drafts[j].Order
	})
	return drafts, nil
}

// positionID names a draft by its place in the cadence, so regenerating the
// same cadence yields the same ids.
func positionID(sendDay, order int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("email_draft/day/%d/order/%d", sendDay, order))).String()
}

// uniqueCategory suffixes repeats with -2, -3, ... skipping names already taken.
func uniqueCategory(seen map[string]bool, category string) string {
	name := category
	for n := 2; seen[name]; n++ {
		name = fmt.Sprintf("%s-%d", category, n)
	}
	seen[name] = true
	return name
}
