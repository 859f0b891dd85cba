package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

const loanApplicationColumns = `application_id, user_email, full_name, date_of_birth, gender, marital_status, nationality, contact_number,
employment_type, employer_name, annual_income, existing_loans, cibil_score, loan_type, loan_amount, loan_tenure, loan_purpose,
preferred_emi, eligibility_status, eligibility_reason, required_documents, recommendations, assessment_source, status,
admin_notes, verification_status, uploaded_documents, reviewed_by, reviewed_at, version, created_at, updated_at`

const basicApplicationColumns = `application_id, first_name, last_name, email, phone, loan_type, loan_amount, annual_income,
employment_status, purpose, status, admin_notes, version, created_at, updated_at`

// ApplicationRepository persists both application schemas.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateComprehensive inserts a scored application. An id already held by
// either schema yields ErrDuplicateKey.
func (r *ApplicationRepository) CreateComprehensive(ctx context.Context, app *models.LoanApplication) error {
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = app.CreatedAt
	if app.Version == 0 {
		app.Version = 1
	}
	if app.RequiredDocuments == nil {
		app.RequiredDocuments = pq.StringArray{}
	}
	if app.Recommendations == nil {
		app.Recommendations = pq.StringArray{}
	}
	if app.UploadedDocuments == nil {
		app.UploadedDocuments = pq.StringArray{}
	}
	const query = `INSERT INTO loan_applications (` + loanApplicationColumns + `)
VALUES (:application_id, :user_email, :full_name, :date_of_birth, :gender, :marital_status, :nationality, :contact_number,
:employment_type, :employer_name, :annual_income, :existing_loans, :cibil_score, :loan_type, :loan_amount, :loan_tenure, :loan_purpose,
:preferred_emi, :eligibility_status, :eligibility_reason, :required_documents, :recommendations, :assessment_source, :status,
:admin_notes, :verification_status, :uploaded_documents, :reviewed_by, :reviewed_at, :version, :created_at, :updated_at)`
	return r.createRegistered(ctx, app.ApplicationID, models.SourceComprehensive, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
			return fmt.Errorf("create loan application: %w", translateUnique(err))
		}
		return nil
	})
}

// CreateBasic inserts a legacy basic-form application under the same id rules
// as CreateComprehensive.
func (r *ApplicationRepository) CreateBasic(ctx context.Context, app *models.BasicApplication) error {
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = app.CreatedAt
	if app.Version == 0 {
		app.Version = 1
	}
	const query = `INSERT INTO basic_applications (` + basicApplicationColumns + `)
VALUES (:application_id, :first_name, :last_name, :email, :phone, :loan_type, :loan_amount, :annual_income,
:employment_status, :purpose, :status, :admin_notes, :version, :created_at, :updated_at)`
	return r.createRegistered(ctx, app.ApplicationID, models.SourceBasic, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
			return fmt.Errorf("create basic application: %w", translateUnique(err))
		}
		return nil
	})
}

// createRegistered claims id in application_ids before running insert, so the
// two application tables never share an id.
func (r *ApplicationRepository) createRegistered(ctx context.Context, id string, source models.ApplicationSource, insert func(*sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const register = `INSERT INTO application_ids (application_id, source) VALUES ($1, $2)`
	if _, err = tx.ExecContext(ctx, register, id, string(source)); err != nil {
		return fmt.Errorf("register application id: %w", translateUnique(err))
	}
	if err = insert(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application insert: %w", err)
	}
	return nil
}

// GetComprehensive returns a comprehensive application or sql.ErrNoRows.
func (r *ApplicationRepository) GetComprehensive(ctx context.Context, id string) (*models.LoanApplication, error) {
	const query = `SELECT ` + loanApplicationColumns + ` FROM loan_applications WHERE application_id = $1`
	var app models.LoanApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, fmt.Errorf("get loan application: %w", err)
	}
	return &app, nil
}

// GetBasic returns a basic application or sql.ErrNoRows.
func (r *ApplicationRepository) GetBasic(ctx context.Context, id string) (*models.BasicApplication, error) {
	const query = `SELECT ` + basicApplicationColumns + ` FROM basic_applications WHERE application_id = $1`
	var app models.BasicApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, fmt.Errorf("get basic application: %w", err)
	}
	return &app, nil
}

// ListComprehensive returns comprehensive applications newest first, optionally for one owner.
func (r *ApplicationRepository) ListComprehensive(ctx context.Context, ownerEmail string) ([]models.LoanApplication, error) {
	query := `SELECT ` + loanApplicationColumns + ` FROM loan_applications`
	args := []interface{}{}
	if ownerEmail != "" {
		query += ` WHERE LOWER(user_email) = LOWER($1)`
		args = append(args, ownerEmail)
	}
	query += ` ORDER BY created_at DESC`
	var apps []models.LoanApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list loan applications: %w", err)
	}
	return apps, nil
}

// ListBasic returns basic applications newest first, optionally for one email.
func (r *ApplicationRepository) ListBasic(ctx context.Context, email string) ([]models.BasicApplication, error) {
	query := `SELECT ` + basicApplicationColumns + ` FROM basic_applications`
	args := []interface{}{}
	if email != "" {
		query += ` WHERE LOWER(email) = LOWER($1)`
		args = append(args, email)
	}
	query += ` ORDER BY created_at DESC`
	var apps []models.BasicApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list basic applications: %w", err)
	}
	return apps, nil
}

// LockedApplication exposes the writes allowed while an application row is locked.
type LockedApplication interface {
	State() models.ApplicationState
	SetStatus(ctx context.Context, change models.StatusChange) error
	AppendUploadedDocument(ctx context.Context, ref string) error
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
	PendingObjection(ctx context.Context) (*models.Objection, error)
	CreateObjection(ctx context.Context, objection *models.Objection) error
	SetObjectionStatus(ctx context.Context, objectionID string, status models.ObjectionStatus, at time.Time) error
	RecordDocument(ctx context.Context, doc *models.DocumentUpload) error
}

// WithApplicationLock runs fn inside a transaction holding a row lock on the
// application, whichever schema it lives in. fn's error rolls the transaction
// back; an unknown id returns sql.ErrNoRows without calling fn.
func (r *ApplicationRepository) WithApplicationLock(ctx context.Context, id string, fn func(LockedApplication) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	state, err := lockApplication(ctx, tx, id)
	if err != nil {
		return err
	}

	if err = fn(&lockedApplication{tx: tx, state: *state}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application transaction: %w", err)
	}
	return nil
}

func lockApplication(ctx context.Context, tx *sqlx.Tx, id string) (*models.ApplicationState, error) {
	const comprehensive = `SELECT application_id, 'comprehensive' AS source, user_email AS owner_email, status, version
FROM loan_applications WHERE application_id = $1 FOR UPDATE`
	const basic = `SELECT application_id, 'basic' AS source, email AS owner_email, status, version
FROM basic_applications WHERE application_id = $1 FOR UPDATE`

	var state models.ApplicationState
	err := tx.GetContext(ctx, &state, comprehensive, id)
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock loan application: %w", err)
	}
	if err := tx.GetContext(ctx, &state, basic, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock basic application: %w", err)
	}
	return &state, nil
}

type lockedApplication struct {
	tx    *sqlx.Tx
	state models.ApplicationState
}

func (l *lockedApplication) State() models.ApplicationState {
	return l.state
}

func (l *lockedApplication) SetStatus(ctx context.Context, change models.StatusChange) error {
	at := change.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var (
		res sql.Result
		err error
	)
	if l.state.Source == models.SourceBasic {
		const query = `UPDATE basic_applications SET status = $1, admin_notes = COALESCE($2, admin_notes), version = version + 1, updated_at = $3
WHERE application_id = $4 AND version = $5`
		res, err = l.tx.ExecContext(ctx, query, change.Status, change.Notes, at, l.state.ApplicationID, l.state.Version)
	} else {
		var reviewedAt *time.Time
		if change.ReviewedBy != nil {
			reviewedAt = &at
		}
		const query = `UPDATE loan_applications SET status = $1, admin_notes = COALESCE($2, admin_notes),
verification_status = COALESCE($3, verification_status), reviewed_by = COALESCE($4, reviewed_by),
reviewed_at = COALESCE($5, reviewed_at), version = version + 1, updated_at = $6
WHERE application_id = $7 AND version = $8`
		res, err = l.tx.ExecContext(ctx, query, change.Status, change.Notes, change.Verification, change.ReviewedBy, reviewedAt, at, l.state.ApplicationID, l.state.Version)
	}
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	l.state.Status = change.Status
	l.state.Version++
	return nil
}

func (l *lockedApplication) AppendUploadedDocument(ctx context.Context, ref string) error {
	if l.state.Source == models.SourceBasic {
		return nil
	}
	const query = `UPDATE loan_applications SET uploaded_documents = array_append(uploaded_documents, $1), updated_at = $2
WHERE application_id = $3`
	if _, err := l.tx.ExecContext(ctx, query, ref, time.Now().UTC(), l.state.ApplicationID); err != nil {
		return fmt.Errorf("append uploaded document: %w", err)
	}
	return nil
}

func (l *lockedApplication) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	return insertHistory(ctx, l.tx, entry)
}

func (l *lockedApplication) PendingObjection(ctx context.Context) (*models.Objection, error) {
	const query = `SELECT ` + objectionColumns + ` FROM objections WHERE application_id = $1 AND status = 'pending' FOR UPDATE`
	var objection models.Objection
	if err := l.tx.GetContext(ctx, &objection, query, l.state.ApplicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending objection: %w", err)
	}
	return &objection, nil
}

func (l *lockedApplication) CreateObjection(ctx context.Context, objection *models.Objection) error {
	return insertObjection(ctx, l.tx, objection)
}

func (l *lockedApplication) SetObjectionStatus(ctx context.Context, objectionID string, status models.ObjectionStatus, at time.Time) error {
	const query = `UPDATE objections SET status = $1, resolved_at = $2 WHERE objection_id = $3 AND status = 'pending'`
	res, err := l.tx.ExecContext(ctx, query, status, at, objectionID)
	if err != nil {
		return fmt.Errorf("update objection status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update objection rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (l *lockedApplication) RecordDocument(ctx context.Context, doc *models.DocumentUpload) error {
	return insertDocument(ctx, l.tx, doc)
}
