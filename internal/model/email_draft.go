// internal/model/email_draft.go
package model

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// EmailDraft is one templated message of a campaign's current generation.
type EmailDraft struct {
	ID             int64          `db:"id" json:"id"`
	CampaignID     int64          `db:"campaign_id" json:"campaign_id"`
	Generation     int            `db:"generation" json:"generation"`
	CategoryID     string         `db:"category_id" json:"category_id"`
	Subject        string         `db:"subject" json:"subject"`
	Body           string         `db:"body" json:"body"`
	SendDay        int            `db:"send_day" json:"send_day"`
	Order          int            `db:"sort_order" json:"order"`
	MonthPhase     string         `db:"month_phase" json:"month_phase"`
	MonthNumber    int            `db:"month_number" json:"month_number"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	Finalized      bool           `db:"finalized" json:"finalized"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

func (d EmailDraft) Approved() bool {
	return d.ApprovalStatus == ApprovalApproved
}

// ApprovalRecord is the approval state of one draft within a generation cycle.
type ApprovalRecord struct {
	DraftID    int64          `json:"draft_id"`
	CategoryID string         `json:"category_id"`
	Generation int            `json:"generation"`
	Status     ApprovalStatus `json:"status"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
}

func (d EmailDraft) ApprovalRecord() ApprovalRecord {
	return ApprovalRecord{
		DraftID:    d.ID,
		CategoryID: d.CategoryID,
		Generation: d.Generation,
		Status:     d.ApprovalStatus,
		ApprovedAt: d.ApprovedAt,
	}
}
