package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type DraftRepositoryInterface interface {
	// ReplaceDrafts starts a new generation cycle for a draft campaign: the
	// previous drafts and their approvals are discarded and drafts inserted
	// as pending. It returns the stored drafts and the new generation.
	ReplaceDrafts(ctx context.Context, campaignID int64, drafts []model.EmailDraft) ([]model.EmailDraft, int, error)
	ListDrafts(ctx context.Context, campaignID int64) ([]model.EmailDraft, error)
	GetDraft(ctx context.Context, id int64) (*model.EmailDraft, error)

	// Conditional updates; false means the guard did not match.
	UpdateDraftContent(ctx context.Context, id int64, subject, body string) (bool, error)
	ApproveDraft(ctx context.Context, id int64, at time.Time) (bool, error)

	SaveFinalized(ctx context.Context, drafts []model.EmailDraft) error
}

type DraftRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

const draftColumns = `id, campaign_id, generation, category_id, subject, body, send_day, sort_order,
        month_phase, month_number, approval_status, approved_at, finalized, created_at, updated_at`

func scanDraft(scan func(dest ...any) error) (*model.EmailDraft, error) {
	var d model.EmailDraft
	err := scan(&d.ID, &d.CampaignID, &d.Generation, &d.CategoryID, &d.Subject, &d.Body, &d.SendDay, &d.Order,
		&d.MonthPhase, &d.MonthNumber, &d.ApprovalStatus, &d.ApprovedAt, &d.Finalized, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DraftRepository) ReplaceDrafts(ctx context.Context, campaignID int64, drafts []model.EmailDraft) ([]model.EmailDraft, int, error) {
	now := utc(time.Now())
	stored := make([]model.EmailDraft, 0, len(drafts))
	var generation int

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		bump := `UPDATE campaigns SET generation=generation+1, updated_at=? WHERE id=? AND status=?`
		res, err := tx.ExecContext(ctx, r.Dialect.Rebind(bump), now, campaignID, string(model.CampaignDraft))
		if err != nil {
			return fmt.Errorf("bump generation: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			// either missing or past draft
			if _, err := getCampaign(ctx, tx, r.Dialect, campaignID); err != nil {
				return err
			}
			return appErrors.NewAlreadyLaunched(campaignID)
		}

		if err := tx.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT generation FROM campaigns WHERE id=?`), campaignID).
			Scan(&generation); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM email_drafts WHERE campaign_id=?`), campaignID); err != nil {
			return fmt.Errorf("discard drafts: %w", err)
		}

		insert := `
            INSERT INTO email_drafts (campaign_id, generation, category_id, subject, body, send_day, sort_order,
                month_phase, month_number, approval_status, finalized, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            RETURNING id
        `
		for _, d := range drafts {
			d.CampaignID = campaignID
			d.Generation = generation
			d.ApprovalStatus = model.ApprovalPending
			d.ApprovedAt = nil
			d.Finalized = false
			d.CreatedAt = now
			d.UpdatedAt = nil
			if err := tx.QueryRowContext(ctx, r.Dialect.Rebind(insert),
				d.CampaignID, d.Generation, d.CategoryID, d.Subject, d.Body, d.SendDay, d.Order,
				d.MonthPhase, d.MonthNumber, string(d.ApprovalStatus), d.Finalized, d.CreatedAt,
			).Scan(&d.ID); err != nil {
				return fmt.Errorf("insert draft: %w", err)
			}
			stored = append(stored, d)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return stored, generation, nil
}

// ListDrafts returns the current cycle's drafts in send order.
func (r *DraftRepository) ListDrafts(ctx context.Context, campaignID int64) ([]model.EmailDraft, error) {
	return listDrafts(ctx, r.DB, r.Dialect, campaignID)
}

func listDrafts(ctx context.Context, q querier, d db.Dialect, campaignID int64) ([]model.EmailDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM email_drafts WHERE campaign_id=? ORDER BY send_day, sort_order, id`
	rows, err := q.QueryContext(ctx, d.Rebind(query), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := []model.EmailDraft{}
	for rows.Next() {
		draft, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *draft)
	}
	return drafts, rows.Err()
}

func (r *DraftRepository) GetDraft(ctx context.Context, id int64) (*model.EmailDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM email_drafts WHERE id=?`
	d, err := scanDraft(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDraftNotFound(id)
		}
		return nil, err
	}
	return d, nil
}

// UpdateDraftContent only touches pending drafts of campaigns still in draft.
func (r *DraftRepository) UpdateDraftContent(ctx context.Context, id int64, subject, body string) (bool, error) {
	query := `
        UPDATE email_drafts SET subject=?, body=?, updated_at=?
        WHERE id=? AND approval_status=?
          AND campaign_id IN (SELECT id FROM campaigns WHERE status=?)
    `
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		subject, body, utc(time.Now()), id, string(model.ApprovalPending), string(model.CampaignDraft))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ApproveDraft flips pending to approved; approving twice changes nothing.
func (r *DraftRepository) ApproveDraft(ctx context.Context, id int64, at time.Time) (bool, error) {
	at = utc(at)
	query := `UPDATE email_drafts SET approval_status=?, approved_at=?, updated_at=? WHERE id=? AND approval_status=?`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(model.ApprovalApproved), at, at, id, string(model.ApprovalPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *DraftRepository) SaveFinalized(ctx context.Context, drafts []model.EmailDraft) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		return saveFinalized(ctx, tx, r.Dialect, drafts)
	})
}

func saveFinalized(ctx context.Context, q querier, d db.Dialect, drafts []model.EmailDraft) error {
	query := d.Rebind(`UPDATE email_drafts SET body=?, finalized=?, updated_at=? WHERE id=?`)
	now := utc(time.Now())
	for _, draft := range drafts {
		res, err := q.ExecContext(ctx, query, draft.Body, true, now, draft.ID)
		if err != nil {
			return fmt.Errorf("finalize draft %d: %w", draft.ID, err)
		}
		if err := requireRow(res, appErrors.NewDraftNotFound(draft.ID)); err != nil {
			return err
		}
	}
	return nil
}

var _ DraftRepositoryInterface = (*DraftRepository)(nil)
