package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/db"
)

// Stores bundles the repositories over one connection.
type Stores struct {
	Batches   *BatchRepository
	Campaigns *CampaignRepository
	Drafts    *DraftRepository
	Jobs      *JobRepository
	Profiles  *ProfileRepository
}

func NewStores(conn *sql.DB, d db.Dialect) *Stores {
	return &Stores{
		Batches:   &BatchRepository{DB: conn, Dialect: d},
		Campaigns: &CampaignRepository{DB: conn, Dialect: d},
		Drafts:    &DraftRepository{DB: conn, Dialect: d},
		Jobs:      &JobRepository{DB: conn, Dialect: d},
		Profiles:  &ProfileRepository{DB: conn, Dialect: d},
	}
}
