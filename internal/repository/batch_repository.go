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

type BatchRepositoryInterface interface {
	// Batch CRUD
	Create(ctx context.Context, b *model.Batch) error
	GetByID(ctx context.Context, id int64) (*model.Batch, error)
	ListBatches(ctx context.Context, offset, limit int, status string) ([]*model.Batch, int, error)
	UpdateStatus(ctx context.Context, id int64, status model.BatchStatus) error
	Delete(ctx context.Context, id int64) error

	// Leads
	AddLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	UpdateLead(ctx context.Context, l *model.Lead) error
	DeleteLead(ctx context.Context, id int64) error
	ListLeads(ctx context.Context, batchID int64) ([]model.Lead, error)
}

type BatchRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// ====================== Batch CRUD ======================

const batchColumns = `b.id, b.owner_id, b.name, b.description, b.objective, b.persona, b.tones, b.status,
        (SELECT COUNT(*) FROM leads l WHERE l.batch_id = b.id) AS lead_count,
        b.created_at, b.updated_at`

func scanBatch(scan func(dest ...any) error) (*model.Batch, error) {
	var (
		b     model.Batch
		tones string
	)
	if err := scan(&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.Objective, &b.Persona, &tones,
		&b.Status, &b.LeadCount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Tones = decodeList(tones)
	return &b, nil
}

func (r *BatchRepository) Create(ctx context.Context, b *model.Batch) error {
	b.CreatedAt = utc(time.Now())
	if b.Status == "" {
		b.Status = model.BatchDraft
	}
	query := `
        INSERT INTO batches (owner_id, name, description, objective, persona, tones, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query),
		b.OwnerID, b.Name, b.Description, b.Objective, string(b.Persona), encodeList(b.Tones), string(b.Status), b.CreatedAt,
	).Scan(&b.ID)
}

func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*model.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches b WHERE b.id=?`
	b, err := scanBatch(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewBatchNotFound(id)
		}
		return nil, err
	}
	return b, nil
}

func (r *BatchRepository) ListBatches(ctx context.Context, offset, limit int, status string) ([]*model.Batch, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if status != "" {
		where += ` AND b.status=?`
		args = append(args, status)
	}

	query := `SELECT ` + batchColumns + ` FROM batches b` + where + ` ORDER BY b.id DESC LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	batches := []*model.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM batches b` + where
	if err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id int64, status model.BatchStatus) error {
	query := `UPDATE batches SET status=?, updated_at=? WHERE id=?`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), string(status), utc(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewBatchNotFound(id))
}

// Delete removes the batch; leads go with it through ON DELETE CASCADE.
func (r *BatchRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM batches WHERE id=?`), id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewBatchNotFound(id))
}

// ====================== Leads ======================

const leadColumns = `id, batch_id, email, name, phone, address, created_at, updated_at`

func scanLead(scan func(dest ...any) error) (*model.Lead, error) {
	var l model.Lead
	if err := scan(&l.ID, &l.BatchID, &l.Email, &l.Name, &l.Phone, &l.Address, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *BatchRepository) AddLead(ctx context.Context, l *model.Lead) error {
	l.Email = model.NormalizeEmail(l.Email)
	l.CreatedAt = utc(time.Now())
	query := `
        INSERT INTO leads (batch_id, email, name, phone, address, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query),
		l.BatchID, l.Email, l.Name, l.Phone, l.Address, l.CreatedAt,
	).Scan(&l.ID)
	if isUniqueViolation(err) {
		return appErrors.NewDuplicateLead(l.BatchID, l.Email)
	}
	return err
}

func (r *BatchRepository) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=?`
	l, err := scanLead(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return l, nil
}

func (r *BatchRepository) UpdateLead(ctx context.Context, l *model.Lead) error {
	l.Email = model.NormalizeEmail(l.Email)
	now := utc(time.Now())
	query := `UPDATE leads SET email=?, name=?, phone=?, address=?, updated_at=? WHERE id=?`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), l.Email, l.Name, l.Phone, l.Address, now, l.ID)
	if isUniqueViolation(err) {
		return appErrors.NewDuplicateLead(l.BatchID, l.Email)
	}
	if err != nil {
		return err
	}
	l.UpdatedAt = &now
	return requireRow(res, appErrors.NewLeadNotFound(l.ID))
}

func (r *BatchRepository) DeleteLead(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM leads WHERE id=?`), id)
	if err != nil {
		return err
	}
	return requireRow(res, appErrors.NewLeadNotFound(id))
}

func (r *BatchRepository) ListLeads(ctx context.Context, batchID int64) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE batch_id=? ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var _ BatchRepositoryInterface = (*BatchRepository)(nil)
