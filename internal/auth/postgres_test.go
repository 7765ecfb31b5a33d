package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var userCols = []string{
	"id", "tenant_id", "email", "role", "status",
	"password_hash", "last_login_at", "created_at", "updated_at", "coalesce",
}

func TestPGUsersFindByEmailScopedToTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`select .+ from users where tenant_id=\$1 and email=lower\(\$2\)`).
		WithArgs("t1", "a@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "t1", "a@example.com", "employee", "active", "$2a$hash", nil, now, now, ""))

	store := NewPGStore(db)
	user, err := store.Users().FindByEmail(context.Background(), "t1", "a@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.ID != "u1" || user.TenantID != "t1" || user.Role != RoleEmployee {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.LastLoginAt != nil {
		t.Fatalf("expected nil last login, got %v", user.LastLoginAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .+ from users where tenant_id=\$1 and id=\$2`).
		WithArgs("t1", "missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	store := NewPGStore(db)
	if _, err := store.Users().FindByID(context.Background(), "t1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`insert into users`).
		WithArgs("u1", "t1", "a@example.com", "employee", "active", "$2a$hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	store := NewPGStore(db)
	u := &User{ID: "u1", TenantID: "t1", Email: "a@example.com", Role: RoleEmployee, Status: StatusActive, PasswordHash: "$2a$hash"}
	if err := store.Users().Create(context.Background(), u); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUsersUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`update users set status=`).
		WithArgs("t1", "ghost", "suspended", "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	err = store.Users().UpdateStatus(context.Background(), "t1", "ghost", StatusSuspended, "admin-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsVerify(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	digest := refreshDigest("some-refresh-token")
	mock.ExpectQuery(`select token_digest from refresh_sessions where user_id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"token_digest"}).AddRow(digest))
	mock.ExpectQuery(`select token_digest from refresh_sessions where user_id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"token_digest"}).AddRow(digest))
	mock.ExpectQuery(`select token_digest from refresh_sessions where user_id=\$1`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"token_digest"}))

	store := NewPGStore(db)
	sessions := store.RefreshSessions()

	if err := sessions.Verify(context.Background(), "u1", digest); err != nil {
		t.Fatalf("Verify matching digest: %v", err)
	}
	if err := sessions.Verify(context.Background(), "u1", refreshDigest("other")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on mismatch, got %v", err)
	}
	if err := sessions.Verify(context.Background(), "u2", digest); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on absent record, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsSwapCAS(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`update refresh_sessions set token_digest=\$3`).
		WithArgs("u1", "old-digest", "new-digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update refresh_sessions set token_digest=\$3`).
		WithArgs("u1", "stale-digest", "newer-digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	sessions := store.RefreshSessions()

	if err := sessions.Swap(context.Background(), "u1", "old-digest", "new-digest"); err != nil {
		t.Fatalf("Swap current digest: %v", err)
	}
	if err := sessions.Swap(context.Background(), "u1", "stale-digest", "newer-digest"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized when CAS misses, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGSessionsRotateAndClear(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into refresh_sessions`).
		WithArgs("u1", "digest-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`delete from refresh_sessions where user_id=\$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	sessions := store.RefreshSessions()

	if err := sessions.Rotate(context.Background(), "u1", "digest-1"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := sessions.Clear(context.Background(), "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
