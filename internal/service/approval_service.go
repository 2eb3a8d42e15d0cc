package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// SignatureMarker separates a finalized body from its signature block.
// Everything after it is replaced on each finalize.
const SignatureMarker = "<!-- signature -->"

type ApprovalState struct {
	CampaignID  int64                  `json:"campaign_id"`
	Generation  int                    `json:"generation"`
	AllApproved bool                   `json:"all_approved"`
	Approved    int                    `json:"approved"`
	Total       int                    `json:"total"`
	Approvals   []model.ApprovalRecord `json:"approvals"`
}

type EditDraftRequest struct {
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

// ApproveDraft marks a draft approved. Approving twice is a no-op.
func (s *CampaignService) ApproveDraft(ctx context.Context, draftID int64) (*model.EmailDraft, error) {
	draft, err := s.DraftRepo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(draft.CampaignID)
	defer unlock()

	changed, err := s.DraftRepo.ApproveDraft(ctx, draftID, s.now())
	if err != nil {
		return nil, fmt.Errorf("approve draft: %w", err)
	}
	if changed {
		s.logger().Info("draft approved", zap.Int64("campaign_id", draft.CampaignID), zap.Int64("draft_id", draftID))
	}
	return s.DraftRepo.GetDraft(ctx, draftID)
}

// EditDraft changes a pending draft's subject and/or body. Approved drafts
// are locked; regenerate to start over.
func (s *CampaignService) EditDraft(ctx context.Context, draftID int64, req EditDraftRequest) (*model.EmailDraft, error) {
	if req.Subject == nil && req.Body == nil {
		return nil, appErrors.NewValidationFailed("", "subject or body is required")
	}
	draft, err := s.DraftRepo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(draft.CampaignID)
	defer unlock()

	subject, body := draft.Subject, draft.Body
	if req.Subject != nil {
		subject = strings.TrimSpace(*req.Subject)
		if subject == "" {
			return nil, appErrors.NewValidationFailed("subject", "cannot be empty")
		}
	}
	if req.Body != nil {
		body = strings.TrimSpace(*req.Body)
		if body == "" {
			return nil, appErrors.NewValidationFailed("body", "cannot be empty")
		}
	}

	updated, err := s.DraftRepo.UpdateDraftContent(ctx, draftID, subject, body)
	if err != nil {
		return nil, fmt.Errorf("edit draft: %w", err)
	}
	if !updated {
		return nil, s.editRejection(ctx, draftID)
	}
	return s.DraftRepo.GetDraft(ctx, draftID)
}

// editRejection explains why the guarded update matched no row.
func (s *CampaignService) editRejection(ctx context.Context, draftID int64) error {
	draft, err := s.DraftRepo.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, draft.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignDraft {
		return appErrors.NewAlreadyLaunched(campaign.ID)
	}
	return appErrors.NewDraftLocked(draftID)
}

// ListDrafts returns the campaign's current drafts in send order.
func (s *CampaignService) ListDrafts(ctx context.Context, campaignID int64) ([]model.EmailDraft, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.DraftRepo.ListDrafts(ctx, campaignID)
}

// AllApproved is true iff the current cycle has drafts and every one is approved.
func (s *CampaignService) AllApproved(ctx context.Context, campaignID int64) (bool, error) {
	state, err := s.Approvals(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return state.AllApproved, nil
}

func (s *CampaignService) Approvals(ctx context.Context, campaignID int64) (*ApprovalState, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	drafts, err := s.DraftRepo.ListDrafts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return approvalState(campaign, drafts), nil
}

func approvalState(campaign *model.Campaign, drafts []model.EmailDraft) *ApprovalState {
	state := &ApprovalState{
		CampaignID: campaign.ID,
		Generation: campaign.Generation,
		Total:      len(drafts),
		Approvals:  make([]model.ApprovalRecord, 0, len(drafts)),
	}
	for _, d := range drafts {
		state.Approvals = append(state.Approvals, d.ApprovalRecord())
		if d.Approved() {
			state.Approved++
		}
	}
	state.AllApproved = state.Total > 0 && state.Approved == state.Total
	return state
}

// Finalize appends the owner's current signature to every draft and stores
// the bodies. Calling it again replaces the signature rather than adding one.
func (s *CampaignService) Finalize(ctx context.Context, campaignID int64) ([]model.EmailDraft, error) {
	unlock := s.locks.Lock(campaignID)
	defer unlock()

	campaign, drafts, err := s.finalizedDrafts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := s.DraftRepo.SaveFinalized(ctx, drafts); err != nil {
		return nil, fmt.Errorf("save finalized drafts: %w", err)
	}
	s.logger().Info("drafts finalized", zap.Int64("campaign_id", campaign.ID), zap.Int("drafts", len(drafts)))
	return drafts, nil
}

// finalizedDrafts checks the approval gate and returns the drafts with the
// signature applied, without storing them. Callers hold the campaign lock.
func (s *CampaignService) finalizedDrafts(ctx context.Context, campaignID int64) (*model.Campaign, []model.EmailDraft, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}
	if campaign.Status != model.CampaignDraft {
		return nil, nil, appErrors.NewAlreadyLaunched(campaignID)
	}
	drafts, err := s.DraftRepo.ListDrafts(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}
	if state := approvalState(campaign, drafts); !state.AllApproved {
		if state.Total == 0 {
			return nil, nil, appErrors.NewValidationFailed("drafts", "campaign has no drafts")
		}
		return nil, nil, appErrors.NewValidationFailed("drafts",
			fmt.Sprintf("%d of %d drafts approved", state.Approved, state.Total))
	}

	signature := ""
	profile, err := s.ProfileRepo.GetProfile(ctx, campaign.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile: %w", err)
	}
	if profile != nil {
		signature = profile.Signature
	}
	for i := range drafts {
		drafts[i].Body = AppendSignature(drafts[i].Body, signature)
		drafts[i].Finalized = true
	}
	return campaign, drafts, nil
}

// AppendSignature puts signature after the marker, replacing whatever an
// earlier call put there. An empty signature leaves just the body.
func AppendSignature(body, signature string) string {
	if i := strings.Index(body, SignatureMarker); i >= 0 {
		body = body[:i]
	}
	body = strings.TrimRight(body, " \t\r\n")
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return body
	}
	return body + "\n\n" + SignatureMarker + "\n" + signature
}

// stripMarker drops the marker line before a body goes out; readers only
// see the signature.
func stripMarker(body string) string {
	return strings.Replace(body, SignatureMarker+"\n", "", 1)
}
