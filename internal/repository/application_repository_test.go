package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var stateColumns = []string{"application_id", "source", "owner_email", "status", "version"}

const (
	lockComprehensive = "FROM loan_applications WHERE application_id = $1 FOR UPDATE"
	lockBasic         = "FROM basic_applications WHERE application_id = $1 FOR UPDATE"
)

func TestCreateComprehensiveTranslatesDuplicateKey(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_ids")).
		WithArgs("AB12CD34", "comprehensive").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loan_applications")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	app := &models.LoanApplication{
		ApplicationID: "AB12CD34",
		UserEmail:     "priya@example.com",
		AnnualIncome:  decimal.NewFromInt(1200000),
		LoanAmount:    decimal.NewFromInt(500000),
		Status:        models.StatusEligibilityAssessed,
	}
	err := repo.CreateComprehensive(context.Background(), app)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, 1, app.Version)
	assert.NotNil(t, app.RequiredDocuments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBasicRejectsIDHeldByComprehensive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_ids")).
		WithArgs("AB12CD34", "basic").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateBasic(context.Background(), &models.BasicApplication{ApplicationID: "AB12CD34", Email: "ravi@example.com", Status: models.StatusSubmitted})
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBasicRegistersIDAndCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_ids")).
		WithArgs("EF56AB78", "basic").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO basic_applications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app := &models.BasicApplication{ApplicationID: "EF56AB78", Email: "ravi@example.com", Status: models.StatusSubmitted}
	require.NoError(t, repo.CreateBasic(context.Background(), app))
	assert.Equal(t, 1, app.Version)
	assert.False(t, app.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListComprehensiveFiltersByOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM loan_applications WHERE LOWER(user_email) = LOWER($1) ORDER BY created_at DESC")).
		WithArgs("priya@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"application_id", "user_email", "status", "version"}).
			AddRow("AB12CD34", "priya@example.com", "submitted", 1))

	apps, err := repo.ListComprehensive(context.Background(), "priya@example.com")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, models.StatusSubmitted, apps[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBasicWithoutEmailListsAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM basic_applications ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"application_id", "email", "loan_amount"}).
			AddRow("EF56AB78", "ravi@example.com", nil))

	apps, err := repo.ListBasic(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.False(t, apps[0].LoanAmount.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithApplicationLockCommitsStatusChange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).
		WithArgs("AB12CD34").
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("AB12CD34", "comprehensive", "priya@example.com", "eligibility_assessed", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE loan_applications SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reviewer := "officer"
	err := repo.WithApplicationLock(context.Background(), "AB12CD34", func(locked LockedApplication) error {
		assert.Equal(t, models.SourceComprehensive, locked.State().Source)
		if err := locked.SetStatus(context.Background(), models.StatusChange{Status: models.StatusUnderReview, ReviewedBy: &reviewer, At: time.Now()}); err != nil {
			return err
		}
		assert.Equal(t, 2, locked.State().Version)
		assert.Equal(t, models.StatusUnderReview, locked.State().Status)
		return locked.AppendHistory(context.Background(), &models.HistoryEntry{
			ApplicationID: "AB12CD34",
			UserEmail:     "priya@example.com",
			Status:        models.StatusUnderReview,
			Action:        models.ActionUnderReview,
			ActionBy:      reviewer,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithApplicationLockFallsBackToBasicAndRollsBackOnConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(lockBasic)).
		WithArgs("EF56AB78").
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("EF56AB78", "basic", "ravi@example.com", "submitted", 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE basic_applications SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithApplicationLock(context.Background(), "EF56AB78", func(locked LockedApplication) error {
		assert.Equal(t, models.SourceBasic, locked.State().Source)
		return locked.SetStatus(context.Background(), models.StatusChange{Status: models.StatusApproved})
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithApplicationLockUnknownIDSkipsCallback(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(lockBasic)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := repo.WithApplicationLock(context.Background(), "MISSING1", func(LockedApplication) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithApplicationLockCallbackErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("AB12CD34", "comprehensive", "priya@example.com", "objection_raised", 4))
	mock.ExpectQuery(regexp.QuoteMeta("FROM objections WHERE application_id = $1 AND status = 'pending' FOR UPDATE")).
		WithArgs("AB12CD34").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	sentinel := errors.New("no pending objection")
	err := repo.WithApplicationLock(context.Background(), "AB12CD34", func(locked LockedApplication) error {
		pending, err := locked.PendingObjection(context.Background())
		require.NoError(t, err)
		if pending == nil {
			return sentinel
		}
		return nil
	})
	require.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockedObjectionStatusRequiresPendingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("AB12CD34", "comprehensive", "priya@example.com", "objection_raised", 4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE objections SET status = $1, resolved_at = $2 WHERE objection_id = $3 AND status = 'pending'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithApplicationLock(context.Background(), "AB12CD34", func(locked LockedApplication) error {
		return locked.SetObjectionStatus(context.Background(), "OBJ00001", models.ObjectionResolved, time.Now())
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendUploadedDocumentIgnoresBasicApplications(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(lockBasic)).
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("EF56AB78", "basic", "ravi@example.com", "submitted", 1))
	mock.ExpectCommit()

	err := repo.WithApplicationLock(context.Background(), "EF56AB78", func(locked LockedApplication) error {
		return locked.AppendUploadedDocument(context.Background(), "EF56AB78/payslip.pdf")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendHistoryRetriesCollidingDraftID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.HistoryEntry{ApplicationID: "AB12CD34", Status: models.StatusApproved, Action: models.ActionApproved, ActionBy: "officer"}
	require.NoError(t, repo.Append(context.Background(), entry))
	assert.Len(t, entry.DraftID, 8)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendHistoryGivesUpAfterRepeatedCollisions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	for i := 0; i < maxIDAttempts; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_history")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := repo.Append(context.Background(), &models.HistoryEntry{ApplicationID: "AB12CD34", Action: models.ActionApproved})
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendHistoryKnownDraftIDIsNotOverwritten(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO application_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	entry := &models.HistoryEntry{DraftID: "LEG00001", ApplicationID: "AB12CD34", Action: models.ActionSubmitted}
	err := repo.Append(context.Background(), entry)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, "LEG00001", entry.DraftID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockedCreateObjectionRetriesCollidingID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockComprehensive)).
		WillReturnRows(sqlmock.NewRows(stateColumns).AddRow("AB12CD34", "comprehensive", "priya@example.com", "under_review", 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO objections")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO objections")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	objection := &models.Objection{ApplicationID: "AB12CD34", UserEmail: "priya@example.com", Reason: "Payslips missing", CreatedBy: "officer"}
	err := repo.WithApplicationLock(context.Background(), "AB12CD34", func(locked LockedApplication) error {
		return locked.CreateObjection(context.Background(), objection)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, objection.ObjectionID)
	assert.Equal(t, models.ObjectionPending, objection.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
