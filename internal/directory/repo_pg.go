package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"catalog-platform/internal/tenant"
	"catalog-platform/pkg/utils"

	"github.com/google/uuid"
)

// PGRepo is the Postgres-backed directory.
//
// Schema assumptions:
//   - profiles(id, email unique, given_name, family_name, created_at)
//   - tenants(id, name, branding jsonb)
//   - profile_tenants(profile_id, tenant_id) links profiles to tenants
type PGRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db, clock: time.Now}
}

func (r *PGRepo) FindByEmail(ctx context.Context, email string) (Profile, bool, error) {
	if email == "" {
		return Profile{}, false, ErrInvalidArgument
	}

	const q = `
		SELECT id, email, given_name, family_name, created_at
		FROM profiles
		WHERE lower(email) = lower($1)`

	var p Profile
	err := r.db.QueryRowContext(ctx, q, email).Scan(&p.ID, &p.Email, &p.GivenName, &p.FamilyName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, err
	}

	const linksQ = `SELECT tenant_id FROM profile_tenants WHERE profile_id = $1`
	rows, err := r.db.QueryContext(ctx, linksQ, p.ID)
	if err != nil {
		return Profile{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Profile{}, false, err
		}
		p.TenantIDs = append(p.TenantIDs, id)
	}
	return p, true, rows.Err()
}

func (r *PGRepo) Create(ctx context.Context, p Profile) (Profile, error) {
	if p.Email == "" {
		return Profile{}, ErrInvalidArgument
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.clock().UTC()
	}

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const insertQ = `
			INSERT INTO profiles (id, email, given_name, family_name, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO NOTHING`
		res, err := tx.ExecContext(ctx, insertQ, p.ID, p.Email, p.GivenName, p.FamilyName, p.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyExists
		}

		const linkQ = `INSERT INTO profile_tenants (profile_id, tenant_id) VALUES ($1, $2)`
		for _, tid := range p.TenantIDs {
			if _, err := tx.ExecContext(ctx, linkQ, p.ID, tid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *PGRepo) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	const q = `SELECT id, name, branding FROM tenants ORDER BY name, id`
	return r.scanTenants(ctx, q)
}

func (r *PGRepo) ListTenantsForEmail(ctx context.Context, email string) ([]tenant.Tenant, error) {
	const q = `
		SELECT t.id, t.name, t.branding
		FROM tenants t
		JOIN profile_tenants pt ON pt.tenant_id = t.id
		JOIN profiles p ON p.id = pt.profile_id
		WHERE lower(p.email) = lower($1)
		ORDER BY t.name, t.id`
	return r.scanTenants(ctx, q, email)
}

func (r *PGRepo) scanTenants(ctx context.Context, q string, args ...any) ([]tenant.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		var branding []byte
		if err := rows.Scan(&t.ID, &t.Name, &branding); err != nil {
			return nil, err
		}
		if len(branding) > 0 {
			if err := json.Unmarshal(branding, &t.Branding); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
