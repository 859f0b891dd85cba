package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

// UserRepository persists applicant accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new applicant. A taken email yields ErrDuplicateKey.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	const query = `INSERT INTO users (id, name, email, phone, password_hash, created_at, updated_at)
VALUES (:id, :name, :email, :phone, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", translateUnique(err))
	}
	return nil
}

// FindByEmail returns the applicant with the given login email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, name, email, phone, password_hash, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns the applicant with the given id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, name, email, phone, password_hash, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpdatePassword rotates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, hash, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

// StaffRepository persists portal operators.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByUsername returns the staff member with the given login name.
func (r *StaffRepository) FindByUsername(ctx context.Context, username string) (*models.Staff, error) {
	const query = `SELECT id, username, email, role, password_hash, created_at, updated_at FROM staff WHERE username = $1 LIMIT 1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, username); err != nil {
		return nil, fmt.Errorf("find staff by username: %w", err)
	}
	return &staff, nil
}

// FindByID returns the staff member with the given id.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	const query = `SELECT id, username, email, role, password_hash, created_at, updated_at FROM staff WHERE id = $1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, fmt.Errorf("find staff by id: %w", err)
	}
	return &staff, nil
}

// Upsert inserts the staff member or refreshes role and password on username conflict.
func (r *StaffRepository) Upsert(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	const query = `INSERT INTO staff (id, username, email, role, password_hash, created_at, updated_at)
VALUES (:id, :username, :email, :role, :password_hash, :created_at, :updated_at)
ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role, password_hash = EXCLUDED.password_hash, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("upsert staff: %w", err)
	}
	return nil
}

// Import inserts a staff member from an older data source, leaving existing usernames untouched.
func (r *StaffRepository) Import(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	if staff.UpdatedAt.IsZero() {
		staff.UpdatedAt = staff.CreatedAt
	}
	const query = `INSERT INTO staff (id, username, email, role, password_hash, created_at, updated_at)
VALUES (:id, :username, :email, :role, :password_hash, :created_at, :updated_at)
ON CONFLICT DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("import staff: %w", err)
	}
	return nil
}
