package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	TransitionStatus(ctx context.Context, id int64, to model.CampaignStatus, from ...model.CampaignStatus) (bool, error)

	// Job stats
	GetCampaignStats(ctx context.Context, campaignID int64) (map[string]int, error)
}

type CampaignRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// ====================== Campaign CRUD ======================

const campaignColumns = `id, batch_id, owner_id, name, status, objective, persona, tones, cities, timezone,
        generation, emails_sent, emails_total, open_rate, click_rate, response_rate,
        launched_at, created_at, updated_at`

func scanCampaign(scan func(dest ...any) error) (*model.Campaign, error) {
	var (
		c             model.Campaign
		tones, cities string
	)
	err := scan(&c.ID, &c.BatchID, &c.OwnerID, &c.Name, &c.Status, &c.Objective, &c.Persona, &tones, &cities,
		&c.Timezone, &c.Generation, &c.Metrics.EmailsSent, &c.Metrics.EmailsTotal, &c.Metrics.OpenRate,
		&c.Metrics.ClickRate, &c.Metrics.ResponseRate, &c.LaunchedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Tones = decodeList(tones)
	c.Cities = decodeList(cities)
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = utc(time.Now())
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (batch_id, owner_id, name, status, objective, persona, tones, cities, timezone, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query),
		c.BatchID, c.OwnerID, c.Name, string(c.Status), c.Objective, string(c.Persona),
		encodeList(c.Tones), encodeList(c.Cities), c.Timezone, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	return getCampaign(ctx, r.DB, r.Dialect, id)
}

func getCampaign(ctx context.Context, q querier, d db.Dialect, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=?`
	c, err := scanCampaign(q.QueryRowContext(ctx, d.Rebind(query), id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		where += ` AND status=?`
		args = append(args, status)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	countQuery := `SELECT COUNT(*) FROM campaigns` + where
	if err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// TransitionStatus moves the campaign to `to` only if its current status is
// one of `from`. It reports false when the row exists but was in another state.
func (r *CampaignRepository) TransitionStatus(ctx context.Context, id int64, to model.CampaignStatus, from ...model.CampaignStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{string(to), utc(time.Now()), id}
	for _, s := range from {
		args = append(args, string(s))
	}
	query := `UPDATE campaigns SET status=?, updated_at=? WHERE id=? AND status IN (` + placeholders(len(from)) + `)`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ====================== Job stats ======================

func (r *CampaignRepository) GetCampaignStats(ctx context.Context, campaignID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM scheduled_email_jobs WHERE campaign_id=? GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		string(model.JobPending): 0,
		string(model.JobQueued):  0,
		string(model.JobSent):    0,
		string(model.JobFailed):  0,
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
