// internal/model/scheduled_email_job.go
package model

import "time"

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobQueued  JobStatus = "queued"
	JobSent    JobStatus = "sent"
	JobFailed  JobStatus = "failed"
)

// Delivered reports whether the job left the not-yet-delivered states.
func (s JobStatus) Delivered() bool {
	return s == JobSent || s == JobFailed
}

type ScheduledEmailJob struct {
	ID            int64      `db:"id" json:"id"`
	CampaignID    int64      `db:"campaign_id" json:"campaign_id"`
	DraftID       int64      `db:"draft_id" json:"draft_id"`
	LeadID        int64      `db:"lead_id" json:"lead_id"`
	Recipient     string     `db:"recipient" json:"recipient"`
	RecipientName string     `db:"recipient_name" json:"recipient_name,omitempty"`
	ScheduledFor  time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Status        JobStatus  `db:"status" json:"status"`
	Attempts      int        `db:"attempts" json:"attempts"`
	LastError     string     `db:"last_error" json:"last_error,omitempty"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// JobEnvelope is what the delivery worker needs to send one job. Recipient
// fields come from the snapshot taken at launch, not from the live lead.
type JobEnvelope struct {
	Job     ScheduledEmailJob
	Subject string
	Body    string
	OwnerID string
}

func (e JobEnvelope) Recipient() Lead {
	return Lead{ID: e.Job.LeadID, Email: e.Job.Recipient, Name: e.Job.RecipientName}
}

// QueueGroup is one (draft, scheduled_for) bucket of a launched campaign's queue.
type QueueGroup struct {
	DraftID      int64     `json:"draft_id"`
	CategoryID   string    `json:"category_id"`
	Subject      string    `json:"subject"`
	SendDay      int       `json:"send_day"`
	Order        int       `json:"order"`
	ScheduledFor time.Time `json:"scheduled_for"`
	PendingCount int       `json:"pending_count"`
	TotalCount   int       `json:"total_count"`
}

type QueueStatus struct {
	CampaignID   int64        `json:"campaign_id"`
	Groups       []QueueGroup `json:"groups"`
	TotalPending int          `json:"total_pending"`
	NextFireAt   *time.Time   `json:"next_fire_at,omitempty"`
}
