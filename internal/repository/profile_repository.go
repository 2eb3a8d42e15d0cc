package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type ProfileRepositoryInterface interface {
	GetProfile(ctx context.Context, ownerID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
}

type ProfileRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// GetProfile returns nil, nil when the owner has no profile yet.
func (r *ProfileRepository) GetProfile(ctx context.Context, ownerID string) (*model.Profile, error) {
	query := `SELECT owner_id, display_name, company_name, signature FROM profiles WHERE owner_id=?`
	var p model.Profile
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), ownerID).
		Scan(&p.OwnerID, &p.DisplayName, &p.CompanyName, &p.Signature)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, p *model.Profile) error {
	query := `
        INSERT INTO profiles (owner_id, display_name, company_name, signature, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (owner_id) DO UPDATE SET
            display_name=excluded.display_name,
            company_name=excluded.company_name,
            signature=excluded.signature,
            updated_at=excluded.updated_at
    `
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		p.OwnerID, p.DisplayName, p.CompanyName, p.Signature, utc(time.Now()))
	return err
}

var _ ProfileRepositoryInterface = (*ProfileRepository)(nil)
