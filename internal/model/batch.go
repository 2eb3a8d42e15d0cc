// internal/model/batch.go
package model

import "time"

type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchPaused    BatchStatus = "paused"
	BatchDraft     BatchStatus = "draft"
	BatchInactive  BatchStatus = "inactive"
	BatchCompleted BatchStatus = "completed"
)

func (s BatchStatus) Valid() bool {
	switch s {
	case BatchActive, BatchPaused, BatchDraft, BatchInactive, BatchCompleted:
		return true
	}
	return false
}

// Batch is a named group of leads with a shared outreach intent.
// LeadCount is always filled from a live count of the batch's leads.
type Batch struct {
	ID          int64       `db:"id" json:"id"`
	OwnerID     string      `db:"owner_id" json:"owner_id"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Objective   string      `db:"objective" json:"objective"`
	Persona     Persona     `db:"persona" json:"persona"`
	Tones       []string    `db:"tones" json:"tones"`
	Status      BatchStatus `db:"status" json:"status"`
	LeadCount   int         `db:"lead_count" json:"lead_count"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time  `db:"updated_at" json:"updated_at,omitempty"`
}
