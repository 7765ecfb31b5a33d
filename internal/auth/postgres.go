package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGStore implements Store on PostgreSQL. All user queries carry the tenant
// predicate in SQL; the unique index on (tenant_id, lower(email)) backs the
// registration conflict, and the refresh swap relies on a conditional
// UPDATE for its compare-and-swap.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Tenants() TenantStore { return &pgTenants{db: s.db} }

func (s *PGStore) Users() UserStore { return &pgUsers{db: s.db} }

func (s *PGStore) RefreshSessions() RefreshStore { return &pgSessions{db: s.db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Tenant store -------------------------------------------------------------

type pgTenants struct{ db *sql.DB }

func (s *pgTenants) Create(ctx context.Context, t *Tenant) error {
	err := s.db.QueryRowContext(ctx,
		`insert into tenants(id, name) values($1,$2) returning created_at, updated_at`,
		t.ID, t.Name,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgTenants) Find(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from tenants where id=$1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// User store ---------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

const userColumns = `id, tenant_id, email, role, status, password_hash, last_login_at, created_at, updated_at, coalesce(updated_by,'')`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Role, &u.Status,
		&u.PasswordHash, &lastLogin, &u.CreatedAt, &u.UpdatedAt, &u.UpdatedBy); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	err := s.db.QueryRowContext(ctx,
		`insert into users(id, tenant_id, email, role, status, password_hash)
		 values($1,$2,$3,$4,$5,$6) returning created_at, updated_at`,
		u.ID, u.TenantID, u.Email, u.Role, u.Status, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *pgUsers) FindByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and email=lower($2)`,
		tenantID, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *pgUsers) FindByID(ctx context.Context, tenantID, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and id=$2`,
		tenantID, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *pgUsers) List(ctx context.Context, tenantID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 order by created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *pgUsers) UpdatePassword(ctx context.Context, tenantID, userID, passwordHash string) error {
	return s.exec(ctx,
		`update users set password_hash=$3, updated_at=now() where tenant_id=$1 and id=$2`,
		tenantID, userID, passwordHash)
}

func (s *pgUsers) UpdateStatus(ctx context.Context, tenantID, userID, status, updatedBy string) error {
	return s.exec(ctx,
		`update users set status=$3, updated_by=$4, updated_at=now() where tenant_id=$1 and id=$2`,
		tenantID, userID, status, updatedBy)
}

func (s *pgUsers) UpdateRole(ctx context.Context, tenantID, userID string, role Role, updatedBy string) error {
	return s.exec(ctx,
		`update users set role=$3, updated_by=$4, updated_at=now() where tenant_id=$1 and id=$2`,
		tenantID, userID, role, updatedBy)
}

func (s *pgUsers) RecordLogin(ctx context.Context, tenantID, userID string, at time.Time) error {
	return s.exec(ctx,
		`update users set last_login_at=$3 where tenant_id=$1 and id=$2`,
		tenantID, userID, at)
}

func (s *pgUsers) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh session store ----------------------------------------------------

type pgSessions struct{ db *sql.DB }

func (s *pgSessions) Rotate(ctx context.Context, userID, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_sessions(user_id, token_digest, rotated_at)
		 values($1,$2,now())
		 on conflict (user_id) do update set token_digest=excluded.token_digest, rotated_at=now()`,
		userID, digest)
	return err
}

func (s *pgSessions) Verify(ctx context.Context, userID, digest string) error {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`select token_digest from refresh_sessions where user_id=$1`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if !digestEqual(stored, digest) {
		return ErrUnauthorized
	}
	return nil
}

func (s *pgSessions) Swap(ctx context.Context, userID, oldDigest, newDigest string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_sessions set token_digest=$3, rotated_at=now()
		 where user_id=$1 and token_digest=$2`,
		userID, oldDigest, newDigest)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnauthorized
	}
	return nil
}

func (s *pgSessions) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from refresh_sessions where user_id=$1`, userID)
	return err
}
