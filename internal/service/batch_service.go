package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// BatchService manages batches and the leads in them.
type BatchService struct {
	BatchRepo repository.BatchRepositoryInterface
	Log       *zap.Logger
}

type CreateBatchRequest struct {
	OwnerID     string            `json:"owner_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Objective   string            `json:"objective"`
	Persona     model.Persona     `json:"persona"`
	Tones       []string          `json:"tones"`
	Status      model.BatchStatus `json:"status"`
}

type LeadInput struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type RejectedLead struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type AddLeadsResult struct {
	BatchID  int64          `json:"batch_id"`
	Added    []model.Lead   `json:"added"`
	Rejected []RejectedLead `json:"rejected"`
}

func (s *BatchService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *BatchService) CreateBatch(ctx context.Context, req CreateBatchRequest) (*model.Batch, error) {
	b := &model.Batch{
		OwnerID:     strings.TrimSpace(req.OwnerID),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Objective:   strings.TrimSpace(req.Objective),
		Persona:     req.Persona,
		Tones:       req.Tones,
		Status:      req.Status,
	}
	if b.Name == "" {
		return nil, appErrors.NewValidationFailed("name", "is required")
	}
	if !b.Persona.Valid() {
		return nil, appErrors.NewValidationFailed("persona", fmt.Sprintf("unknown persona %q", b.Persona))
	}
	if b.Status == "" {
		b.Status = model.BatchDraft
	}
	if !b.Status.Valid() {
		return nil, appErrors.NewValidationFailed("status", fmt.Sprintf("unknown status %q", b.Status))
	}
	if b.Tones == nil {
		b.Tones = []string{}
	}

	if err := s.BatchRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	s.logger().Info("batch created", zap.Int64("batch_id", b.ID), zap.String("owner_id", b.OwnerID))
	return b, nil
}

func (s *BatchService) GetBatch(ctx context.Context, id int64) (*model.Batch, error) {
	return s.BatchRepo.GetByID(ctx, id)
}

func (s *BatchService) ListBatches(ctx context.Context, page, pageSize int, status string) ([]model.Batch, map[string]int, error) {
	page, pageSize, offset := paginate(page, pageSize)
	ptrs, total, err := s.BatchRepo.ListBatches(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}
	batches := make([]model.Batch, len(ptrs))
	for i, b := range ptrs {
		batches[i] = *b
	}
	return batches, pagination(page, pageSize, total), nil
}

// SetBatchStatus sets any valid status; an empty status toggles between
// active and paused.
func (s *BatchService) SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) (*model.Batch, error) {
	if status == "" {
		b, err := s.BatchRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		status = model.BatchPaused
		if b.Status != model.BatchActive {
			status = model.BatchActive
		}
	}
	if !status.Valid() {
		return nil, appErrors.NewValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.BatchRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.BatchRepo.GetByID(ctx, id)
}

func (s *BatchService) DeleteBatch(ctx context.Context, id int64) error {
	if err := s.BatchRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger().Info("batch deleted", zap.Int64("batch_id", id))
	return nil
}

// AddLeads stores each valid lead. Invalid or duplicate leads are reported
// back and do not stop the rest.
func (s *BatchService) AddLeads(ctx context.Context, batchID int64, inputs []LeadInput) (*AddLeadsResult, error) {
	if len(inputs) == 0 {
		return nil, appErrors.NewValidationFailed("leads", "at least one lead is required")
	}
	if _, err := s.BatchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}

	result := &AddLeadsResult{BatchID: batchID, Added: []model.Lead{}, Rejected: []RejectedLead{}}
	for _, in := range inputs {
		lead, err := leadFromInput(batchID, in)
		if err == nil {
			err = s.BatchRepo.AddLead(ctx, lead)
		}
		if err != nil {
			var (
				validation *appErrors.ErrValidationFailed
				duplicate  *appErrors.ErrDuplicateLead
			)
			if errors.As(err, &validation) || errors.As(err, &duplicate) {
				result.Rejected = append(result.Rejected, RejectedLead{Email: in.Email, Reason: err.Error()})
				continue
			}
			return nil, fmt.Errorf("add lead: %w", err)
		}
		result.Added = append(result.Added, *lead)
	}
	s.logger().Info("leads added",
		zap.Int64("batch_id", batchID),
		zap.Int("added", len(result.Added)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

func leadFromInput(batchID int64, in LeadInput) (*model.Lead, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, appErrors.NewValidationFailed("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, appErrors.NewValidationFailed("email", fmt.Sprintf("%q is not a valid address", in.Email))
	}
	return &model.Lead{
		BatchID: batchID,
		Email:   email,
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}, nil
}

func (s *BatchService) UpdateLead(ctx context.Context, leadID int64, in LeadInput) (*model.Lead, error) {
	current, err := s.BatchRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	// empty fields keep their stored value
	if strings.TrimSpace(in.Email) == "" {
		in.Email = current.Email
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = current.Name
	}
	if strings.TrimSpace(in.Phone) == "" {
		in.Phone = current.Phone
	}
	if strings.TrimSpace(in.Address) == "" {
		in.Address = current.Address
	}
	lead, err := leadFromInput(current.BatchID, in)
	if err != nil {
		return nil, err
	}
	lead.ID = current.ID
	lead.CreatedAt = current.CreatedAt
	if err := s.BatchRepo.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *BatchService) DeleteLead(ctx context.Context, leadID int64) error {
	return s.BatchRepo.DeleteLead(ctx, leadID)
}

func (s *BatchService) ListLeads(ctx context.Context, batchID int64) ([]model.Lead, error) {
	if _, err := s.BatchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.BatchRepo.ListLeads(ctx, batchID)
}
