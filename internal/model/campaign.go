// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// CampaignMetrics are written by the delivery side only.
type CampaignMetrics struct {
	EmailsSent   int     `db:"emails_sent" json:"emails_sent"`
	EmailsTotal  int     `db:"emails_total" json:"emails_total"`
	OpenRate     float64 `db:"open_rate" json:"open_rate"`
	ClickRate    float64 `db:"click_rate" json:"click_rate"`
	ResponseRate float64 `db:"response_rate" json:"response_rate"`
}

type Campaign struct {
	ID         int64           `db:"id" json:"id"`
	BatchID    int64           `db:"batch_id" json:"batch_id"`
	OwnerID    string          `db:"owner_id" json:"owner_id"`
	Name       string          `db:"name" json:"name"`
	Status     CampaignStatus  `db:"status" json:"status"`
	Objective  string          `db:"objective" json:"objective"`
	Persona    Persona         `db:"persona" json:"persona"`
	Tones      []string        `db:"tones" json:"tones"`
	Cities     []string        `db:"cities" json:"cities"`
	Timezone   string          `db:"timezone" json:"timezone"`
	Generation int             `db:"generation" json:"generation"`
	Metrics    CampaignMetrics `json:"metrics"`
	LaunchedAt *time.Time      `db:"launched_at" json:"launched_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignLaunch is the single claim row that makes a launch exactly-once.
type CampaignLaunch struct {
	CampaignID int64     `db:"campaign_id" json:"campaign_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	JobCount   int       `db:"job_count" json:"job_count"`
	LaunchedAt time.Time `db:"launched_at" json:"launched_at"`
}
