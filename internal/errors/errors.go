// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrBatchNotFound struct {
	BatchID int64
}

func (e *ErrBatchNotFound) Error() string {
	return fmt.Sprintf("batch with ID %d not found", e.BatchID)
}

func NewBatchNotFound(id int64) error {
	return &ErrBatchNotFound{BatchID: id}
}

type ErrLeadNotFound struct {
	LeadID int64
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead with ID %d not found", e.LeadID)
}

func NewLeadNotFound(id int64) error {
	return &ErrLeadNotFound{LeadID: id}
}

type ErrDraftNotFound struct {
	DraftID int64
}

func (e *ErrDraftNotFound) Error() string {
	return fmt.Sprintf("draft with ID %d not found", e.DraftID)
}

func NewDraftNotFound(id int64) error {
	return &ErrDraftNotFound{DraftID: id}
}

type ErrJobNotFound struct {
	JobID int64
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("scheduled job with ID %d not found", e.JobID)
}

func NewJobNotFound(id int64) error {
	return &ErrJobNotFound{JobID: id}
}

// ErrGenerationFailed reports an unreachable provider, a provider error, a
// timeout, or a payload that could not be turned into drafts. Nothing is
// persisted when it is returned.
type ErrGenerationFailed struct {
	CampaignID int64
	Reason     string
	Err        error
}

func (e *ErrGenerationFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("draft generation failed for campaign %d: %s: %v", e.CampaignID, e.Reason, e.Err)
	}
	return fmt.Sprintf("draft generation failed for campaign %d: %s", e.CampaignID, e.Reason)
}

func (e *ErrGenerationFailed) Unwrap() error { return e.Err }

func NewGenerationFailed(campaignID int64, reason string, err error) error {
	return &ErrGenerationFailed{CampaignID: campaignID, Reason: reason, Err: err}
}

// ErrAlreadyLaunched is an informational rejection: the campaign is active and
// its drafts and schedule can no longer change.
type ErrAlreadyLaunched struct {
	CampaignID int64
}

func (e *ErrAlreadyLaunched) Error() string {
	return fmt.Sprintf("campaign %d was already launched", e.CampaignID)
}

func NewAlreadyLaunched(id int64) error {
	return &ErrAlreadyLaunched{CampaignID: id}
}

type ErrNotLaunched struct {
	CampaignID int64
	Status     string
}

func (e *ErrNotLaunched) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("campaign %d has not been launched", e.CampaignID)
	}
	return fmt.Sprintf("campaign %d has not been launched (status %s)", e.CampaignID, e.Status)
}

func NewNotLaunched(id int64, status string) error {
	return &ErrNotLaunched{CampaignID: id, Status: status}
}

// ErrValidationFailed is raised before any external call or write.
type ErrValidationFailed struct {
	Field   string
	Message string
}

func (e *ErrValidationFailed) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func NewValidationFailed(field, message string) error {
	return &ErrValidationFailed{Field: field, Message: message}
}

// ErrDraftLocked is returned when an approved draft is edited.
type ErrDraftLocked struct {
	DraftID int64
}

func (e *ErrDraftLocked) Error() string {
	return fmt.Sprintf("draft %d is approved and can no longer be edited", e.DraftID)
}

func NewDraftLocked(id int64) error {
	return &ErrDraftLocked{DraftID: id}
}

type ErrDuplicateLead struct {
	BatchID int64
	Email   string
}

func (e *ErrDuplicateLead) Error() string {
	return fmt.Sprintf("lead %s already exists in batch %d", e.Email, e.BatchID)
}

func NewDuplicateLead(batchID int64, email string) error {
	return &ErrDuplicateLead{BatchID: batchID, Email: email}
}

// IsNotFound reports whether err is any of the not-found errors above.
func IsNotFound(err error) bool {
	var (
		c *ErrCampaignNotFound
		b *ErrBatchNotFound
		l *ErrLeadNotFound
		d *ErrDraftNotFound
		j *ErrJobNotFound
	)
	return errors.As(err, &c) || errors.As(err, &b) || errors.As(err, &l) || errors.As(err, &d) || errors.As(err, &j)
}
