package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// jobInsertChunk keeps multi-row inserts well under both drivers' bind limits.
const jobInsertChunk = 500

// LaunchPlan is everything a launch writes, applied in one transaction.
type LaunchPlan struct {
	CampaignID int64
	StartDate  time.Time
	LaunchedAt time.Time
	Drafts     []model.EmailDraft
	Jobs       []model.ScheduledEmailJob
}

type JobRepositoryInterface interface {
	// Launch claims the campaign's launch slot and writes the plan. It
	// returns false, nil when another launch already holds the slot.
	Launch(ctx context.Context, plan LaunchPlan) (bool, error)
	HasLaunched(ctx context.Context, campaignID int64) (bool, error)

	ListJobs(ctx context.Context, campaignID int64, status string, offset, limit int) ([]model.ScheduledEmailJob, error)
	QueueGroups(ctx context.Context, campaignID int64) ([]model.QueueGroup, error)

	// Delivery side
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ReleaseStale(ctx context.Context, queuedBefore time.Time) (int64, error)
	Release(ctx context.Context, ids []int64) (int64, error)
	GetEnvelope(ctx context.Context, jobID int64) (*model.JobEnvelope, error)
	MarkSent(ctx context.Context, jobID int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, jobID int64, reason string) (bool, error)
}

type JobRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// ====================== Launch ======================

func (r *JobRepository) Launch(ctx context.Context, plan LaunchPlan) (bool, error) {
	launched := false
	launchedAt := utc(plan.LaunchedAt)

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		claim := `
            INSERT INTO campaign_launches (campaign_id, start_date, job_count, launched_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT (campaign_id) DO NOTHING
        `
		res, err := tx.ExecContext(ctx, r.Dialect.Rebind(claim),
			plan.CampaignID, utc(plan.StartDate), len(plan.Jobs), launchedAt)
		if err != nil {
			return fmt.Errorf("claim launch: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		activate := `
            UPDATE campaigns SET status=?, launched_at=?, emails_total=?, updated_at=?
            WHERE id=? AND status=?
        `
		res, err = tx.ExecContext(ctx, r.Dialect.Rebind(activate),
			string(model.CampaignActive), launchedAt, len(plan.Jobs), launchedAt,
			plan.CampaignID, string(model.CampaignDraft))
		if err != nil {
			return fmt.Errorf("activate campaign: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			if err == nil {
				// the claim row is rolled back with everything else
				err = errNotDraft
			}
			return err
		}

		if err := saveFinalized(ctx, tx, r.Dialect, plan.Drafts); err != nil {
			return err
		}
		if err := r.insertJobs(ctx, tx, plan.Jobs, launchedAt); err != nil {
			return err
		}
		launched = true
		return nil
	})
	if errors.Is(err, errNotDraft) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return launched, nil
}

var errNotDraft = errors.New("campaign left draft state")

func (r *JobRepository) insertJobs(ctx context.Context, tx *sql.Tx, jobs []model.ScheduledEmailJob, now time.Time) error {
	const row = "(?, ?, ?, ?, ?, ?, ?, ?)"
	for start := 0; start < len(jobs); start += jobInsertChunk {
		end := min(start+jobInsertChunk, len(jobs))
		chunk := jobs[start:end]

		rows := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*8)
		for _, j := range chunk {
			rows = append(rows, row)
			args = append(args, j.CampaignID, j.DraftID, j.LeadID, j.Recipient, j.RecipientName,
				utc(j.ScheduledFor), string(model.JobPending), now)
		}
		query := `INSERT INTO scheduled_email_jobs
            (campaign_id, draft_id, lead_id, recipient, recipient_name, scheduled_for, status, created_at)
            VALUES ` + strings.Join(rows, ", ")
		if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(query), args...); err != nil {
			return fmt.Errorf("insert jobs %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (r *JobRepository) HasLaunched(ctx context.Context, campaignID int64) (bool, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM campaign_launches WHERE campaign_id=?) +
            (SELECT COUNT(*) FROM scheduled_email_jobs WHERE campaign_id=?)
    `
	var n int
	if err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), campaignID, campaignID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ====================== Read side ======================

const jobColumns = `j.id, j.campaign_id, j.draft_id, j.lead_id, j.recipient, j.recipient_name, j.scheduled_for,
        j.status, j.attempts, j.last_error, j.sent_at, j.created_at, j.updated_at`

func scanJob(scan func(dest ...any) error, extra ...any) (*model.ScheduledEmailJob, error) {
	var j model.ScheduledEmailJob
	dest := []any{&j.ID, &j.CampaignID, &j.DraftID, &j.LeadID, &j.Recipient, &j.RecipientName, &j.ScheduledFor,
		&j.Status, &j.Attempts, &j.LastError, &j.SentAt, &j.CreatedAt, &j.UpdatedAt}
	if err := scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepository) ListJobs(ctx context.Context, campaignID int64, status string, offset, limit int) ([]model.ScheduledEmailJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_email_jobs j WHERE j.campaign_id=?`
	args := []any{campaignID}
	if status != "" {
		query += ` AND j.status=?`
		args = append(args, status)
	}
	query += ` ORDER BY j.scheduled_for, j.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.ScheduledEmailJob{}
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// QueueGroups buckets a campaign's jobs by (draft, scheduled_for). Pending
// counts include queued jobs: both are still waiting for delivery.
func (r *JobRepository) QueueGroups(ctx context.Context, campaignID int64) ([]model.QueueGroup, error) {
	query := `
        SELECT j.draft_id, d.category_id, d.subject, d.send_day, d.sort_order, j.scheduled_for,
               SUM(CASE WHEN j.status IN (?, ?) THEN 1 ELSE 0 END) AS pending_count,
               COUNT(*) AS total_count
        FROM scheduled_email_jobs j
        JOIN email_drafts d ON d.id = j.draft_id
        WHERE j.campaign_id=?
        GROUP BY j.draft_id, d.category_id, d.subject, d.send_day, d.sort_order, j.scheduled_for
        ORDER BY j.scheduled_for, d.sort_order, j.draft_id
    `
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query),
		string(model.JobPending), string(model.JobQueued), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.QueueGroup{}
	for rows.Next() {
		var (
			g  model.QueueGroup
			at sqlTime
		)
		if err := rows.Scan(&g.DraftID, &g.CategoryID, &g.Subject, &g.SendDay, &g.Order, &at,
			&g.PendingCount, &g.TotalCount); err != nil {
			return nil, err
		}
		g.ScheduledFor = at.Time
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ====================== Delivery side ======================

// ClaimDue moves up to limit due pending jobs of active campaigns to queued
// and returns their ids.
func (r *JobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	now = utc(now)
	query := `
        UPDATE scheduled_email_jobs SET status=?, updated_at=?
        WHERE id IN (
            SELECT j.id FROM scheduled_email_jobs j
            JOIN campaigns c ON c.id = j.campaign_id
            WHERE j.status=? AND j.scheduled_for <= ? AND c.status=?
            ORDER BY j.scheduled_for, j.id
            LIMIT ?` + r.Dialect.SkipLocked("j") + `
        )
        RETURNING id
    `
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query),
		string(model.JobQueued), now, string(model.JobPending), now, string(model.CampaignActive), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReleaseStale returns queued jobs that were never delivered to pending.
func (r *JobRepository) ReleaseStale(ctx context.Context, queuedBefore time.Time) (int64, error) {
	query := `UPDATE scheduled_email_jobs SET status=?, updated_at=? WHERE status=? AND updated_at < ?`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(model.JobPending), utc(time.Now()), string(model.JobQueued), utc(queuedBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Release puts claimed jobs that could not be published back to pending.
func (r *JobRepository) Release(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{string(model.JobPending), utc(time.Now()), string(model.JobQueued)}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE scheduled_email_jobs SET status=?, updated_at=? WHERE status=? AND id IN (` + placeholders(len(ids)) + `)`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *JobRepository) GetEnvelope(ctx context.Context, jobID int64) (*model.JobEnvelope, error) {
	query := `
        SELECT ` + jobColumns + `, d.subject, d.body, c.owner_id
        FROM scheduled_email_jobs j
        JOIN email_drafts d ON d.id = j.draft_id
        JOIN campaigns c ON c.id = j.campaign_id
        WHERE j.id=?
    `
	var env model.JobEnvelope
	job, err := scanJob(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), jobID).Scan,
		&env.Subject, &env.Body, &env.OwnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewJobNotFound(jobID)
		}
		return nil, err
	}
	env.Job = *job
	return &env, nil
}

// MarkSent records a delivery and bumps the campaign's sent counter. A job
// already sent or failed is left alone and false is returned.
func (r *JobRepository) MarkSent(ctx context.Context, jobID int64, at time.Time) (bool, error) {
	at = utc(at)
	changed := false
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := `
            UPDATE scheduled_email_jobs
            SET status=?, sent_at=?, attempts=attempts+1, last_error='', updated_at=?
            WHERE id=? AND status IN (?, ?)
        `
		res, err := tx.ExecContext(ctx, r.Dialect.Rebind(query),
			string(model.JobSent), at, at, jobID, string(model.JobPending), string(model.JobQueued))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		bump := `UPDATE campaigns SET emails_sent=emails_sent+1
                 WHERE id=(SELECT campaign_id FROM scheduled_email_jobs WHERE id=?)`
		if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(bump), jobID); err != nil {
			return fmt.Errorf("bump emails_sent: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *JobRepository) MarkFailed(ctx context.Context, jobID int64, reason string) (bool, error) {
	query := `
        UPDATE scheduled_email_jobs
        SET status=?, attempts=attempts+1, last_error=?, updated_at=?
        WHERE id=? AND status IN (?, ?)
    `
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(model.JobFailed), reason, utc(time.Now()), jobID, string(model.JobPending), string(model.JobQueued))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var _ JobRepositoryInterface = (*JobRepository)(nil)
