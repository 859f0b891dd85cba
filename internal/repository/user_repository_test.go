package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "password_hash", "created_at", "updated_at"}).
		AddRow("u-1", "Priya Sharma", "priya@example.com", "9876543210", "hash", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, phone, password_hash, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Priya@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Priya@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "priya@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmailMissingWrapsNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email)")).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	user := &models.User{Name: "Priya", Email: "priya@example.com", Phone: "9876543210", PasswordHash: "hash"}
	err := repo.Create(context.Background(), user)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("new-hash", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new-hash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffUpsertRefreshesOnConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	staff := &models.Staff{Username: "admin", Role: models.RoleAdmin, PasswordHash: "hash"}
	require.NoError(t, repo.Upsert(context.Background(), staff))
	assert.NotEmpty(t, staff.ID)
	assert.False(t, staff.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE username = $1 LIMIT 1")).
		WithArgs("officer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role", "password_hash", "created_at", "updated_at"}).
			AddRow("s-1", "officer", "", "staff", "hash", now, now))

	staff, err := repo.FindByUsername(context.Background(), "officer")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, staff.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
