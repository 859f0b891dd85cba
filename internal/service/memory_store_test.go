package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
)

// memoryStore backs the application, workflow and document services in tests.
// WithApplicationLock snapshots state and restores it when fn fails.
type memoryStore struct {
	mu            sync.Mutex
	comprehensive map[string]models.LoanApplication
	basic         map[string]models.BasicApplication
	history       []models.HistoryEntry
	objections    []models.Objection
	documents     []models.DocumentUpload
	userAlerts    []models.UserAlert
	adminAlerts   []models.AdminAlert
	createErrs    []error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		comprehensive: map[string]models.LoanApplication{},
		basic:         map[string]models.BasicApplication{},
	}
}

func (m *memoryStore) nextCreateErr() error {
	if len(m.createErrs) == 0 {
		return nil
	}
	err := m.createErrs[0]
	m.createErrs = m.createErrs[1:]
	return err
}

func (m *memoryStore) exists(id string) bool {
	_, ok := m.comprehensive[id]
	_, okBasic := m.basic[id]
	return ok || okBasic
}

func (m *memoryStore) CreateComprehensive(_ context.Context, app *models.LoanApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.nextCreateErr(); err != nil {
		return err
	}
	if m.exists(app.ApplicationID) {
		return repository.ErrDuplicateKey
	}
	app.Version = 1
	app.UpdatedAt = app.CreatedAt
	m.comprehensive[app.ApplicationID] = *app
	return nil
}

func (m *memoryStore) CreateBasic(_ context.Context, app *models.BasicApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.nextCreateErr(); err != nil {
		return err
	}
	if m.exists(app.ApplicationID) {
		return repository.ErrDuplicateKey
	}
	app.Version = 1
	app.UpdatedAt = app.CreatedAt
	m.basic[app.ApplicationID] = *app
	return nil
}

func (m *memoryStore) GetComprehensive(_ context.Context, id string) (*models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.comprehensive[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &app, nil
}

func (m *memoryStore) GetBasic(_ context.Context, id string) (*models.BasicApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.basic[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &app, nil
}

func (m *memoryStore) ListComprehensive(_ context.Context, ownerEmail string) ([]models.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LoanApplication{}
	for _, app := range m.comprehensive {
		if ownerEmail == "" || strings.EqualFold(app.UserEmail, ownerEmail) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memoryStore) ListBasic(_ context.Context, email string) ([]models.BasicApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.BasicApplication{}
	for _, app := range m.basic {
		if email == "" || strings.EqualFold(app.Email, email) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memoryStore) WithApplicationLock(_ context.Context, id string, fn func(repository.LockedApplication) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var state models.ApplicationState
	if app, ok := m.comprehensive[id]; ok {
		state = models.ApplicationState{ApplicationID: id, Source: models.SourceComprehensive, OwnerEmail: app.UserEmail, Status: app.Status, Version: app.Version}
	} else if app, ok := m.basic[id]; ok {
		state = models.ApplicationState{ApplicationID: id, Source: models.SourceBasic, OwnerEmail: app.Email, Status: app.Status, Version: app.Version}
	} else {
		return sql.ErrNoRows
	}

	snapshot := m.snapshot()
	if err := fn(&memoryLocked{store: m, state: state}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	comprehensive map[string]models.LoanApplication
	basic         map[string]models.BasicApplication
	history       []models.HistoryEntry
	objections    []models.Objection
	documents     []models.DocumentUpload
}

func (m *memoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		comprehensive: make(map[string]models.LoanApplication, len(m.comprehensive)),
		basic:         make(map[string]models.BasicApplication, len(m.basic)),
		history:       append([]models.HistoryEntry(nil), m.history...),
		objections:    append([]models.Objection(nil), m.objections...),
		documents:     append([]models.DocumentUpload(nil), m.documents...),
	}
	for k, v := range m.comprehensive {
		v.UploadedDocuments = append(v.UploadedDocuments[:0:0], v.UploadedDocuments...)
		s.comprehensive[k] = v
	}
	for k, v := range m.basic {
		s.basic[k] = v
	}
	return s
}

func (m *memoryStore) restore(s memorySnapshot) {
	m.comprehensive = s.comprehensive
	m.basic = s.basic
	m.history = s.history
	m.objections = s.objections
	m.documents = s.documents
}

func (m *memoryStore) Append(_ context.Context, entry *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *entry)
	return nil
}

func (m *memoryStore) ListByApplication(_ context.Context, applicationID string) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.HistoryEntry{}
	for _, entry := range m.history {
		if entry.ApplicationID == applicationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memoryStore) historyActions(applicationID string) []models.HistoryAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var actions []models.HistoryAction
	for _, entry := range m.history {
		if entry.ApplicationID == applicationID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

func (m *memoryStore) CreateUserAlert(_ context.Context, alert *models.UserAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userAlerts = append(m.userAlerts, *alert)
	return nil
}

func (m *memoryStore) CreateAdminAlert(_ context.Context, alert *models.AdminAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminAlerts = append(m.adminAlerts, *alert)
	return nil
}

func (m *memoryStore) ListUserAlerts(_ context.Context, email string, unreadOnly bool) ([]models.UserAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserAlert{}
	for _, alert := range m.userAlerts {
		if strings.EqualFold(alert.UserEmail, email) && (!unreadOnly || !alert.Read) {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (m *memoryStore) ListAdminAlerts(_ context.Context, unreadOnly bool) ([]models.AdminAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AdminAlert{}
	for _, alert := range m.adminAlerts {
		if !unreadOnly || !alert.Read {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkUserAlertRead(_ context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.userAlerts {
		if m.userAlerts[i].ID == id && strings.EqualFold(m.userAlerts[i].UserEmail, email) {
			m.userAlerts[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryStore) MarkAdminAlertRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.adminAlerts {
		if m.adminAlerts[i].ID == id {
			m.adminAlerts[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

// objectionView adapts the store to the objection reader interface.
type objectionView struct{ *memoryStore }

func (o objectionView) ListByApplication(_ context.Context, applicationID string) ([]models.Objection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []models.Objection{}
	for _, objection := range o.objections {
		if objection.ApplicationID == applicationID {
			out = append(out, objection)
		}
	}
	return out, nil
}

func (o objectionView) ListPendingByEmail(_ context.Context, email string) ([]models.Objection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []models.Objection{}
	for _, objection := range o.objections {
		if objection.Status == models.ObjectionPending && strings.EqualFold(objection.UserEmail, email) {
			out = append(out, objection)
		}
	}
	return out, nil
}

func (m *memoryStore) pendingObjections(applicationID string) []models.Objection {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Objection
	for _, objection := range m.objections {
		if objection.ApplicationID == applicationID && objection.Status == models.ObjectionPending {
			out = append(out, objection)
		}
	}
	return out
}

// documentView adapts the store to the document repository interface.
type documentView struct{ *memoryStore }

func (d documentView) GetByID(_ context.Context, id string) (*models.DocumentUpload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.documents {
		if doc.ID == id {
			found := doc
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d documentView) FindByPath(_ context.Context, relPath string) (*models.DocumentUpload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.documents {
		if doc.FilePath == relPath {
			found := doc
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d documentView) ListByApplication(_ context.Context, applicationID string) ([]models.DocumentUpload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []models.DocumentUpload{}
	for _, doc := range d.documents {
		if doc.ApplicationID == applicationID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (d documentView) UpdateVerification(_ context.Context, id string, verification models.Verification, comment, verifiedBy string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.documents {
		if d.documents[i].ID == id {
			d.documents[i].Verification = verification
			d.documents[i].AdminComments = comment
			d.documents[i].VerifiedBy = &verifiedBy
			d.documents[i].VerifiedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

// memoryLocked runs with the store mutex already held.
type memoryLocked struct {
	store *memoryStore
	state models.ApplicationState
}

func (l *memoryLocked) State() models.ApplicationState { return l.state }

func (l *memoryLocked) SetStatus(_ context.Context, change models.StatusChange) error {
	id := l.state.ApplicationID
	if l.state.Source == models.SourceBasic {
		app := l.store.basic[id]
		if app.Version != l.state.Version {
			return repository.ErrVersionConflict
		}
		app.Status = change.Status
		if change.Notes != nil {
			app.AdminNotes = *change.Notes
		}
		app.Version++
		app.UpdatedAt = change.At
		l.store.basic[id] = app
	} else {
		app := l.store.comprehensive[id]
		if app.Version != l.state.Version {
			return repository.ErrVersionConflict
		}
		app.Status = change.Status
		if change.Notes != nil {
			app.AdminNotes = *change.Notes
		}
		if change.Verification != nil {
			app.VerificationStatus = *change.Verification
		}
		if change.ReviewedBy != nil {
			app.ReviewedBy = change.ReviewedBy
			at := change.At
			app.ReviewedAt = &at
		}
		app.Version++
		app.UpdatedAt = change.At
		l.store.comprehensive[id] = app
	}
	l.state.Status = change.Status
	l.state.Version++
	return nil
}

func (l *memoryLocked) AppendUploadedDocument(_ context.Context, ref string) error {
	app, ok := l.store.comprehensive[l.state.ApplicationID]
	if !ok {
		return nil
	}
	app.UploadedDocuments = append(app.UploadedDocuments, ref)
	l.store.comprehensive[l.state.ApplicationID] = app
	return nil
}

func (l *memoryLocked) AppendHistory(_ context.Context, entry *models.HistoryEntry) error {
	if entry.DraftID == "" {
		entry.DraftID = repository.ShortID()
	}
	l.store.history = append(l.store.history, *entry)
	return nil
}

func (l *memoryLocked) PendingObjection(context.Context) (*models.Objection, error) {
	for _, objection := range l.store.objections {
		if objection.ApplicationID == l.state.ApplicationID && objection.Status == models.ObjectionPending {
			found := objection
			return &found, nil
		}
	}
	return nil, nil
}

func (l *memoryLocked) CreateObjection(_ context.Context, objection *models.Objection) error {
	if objection.ObjectionID == "" {
		objection.ObjectionID = repository.ShortID()
	}
	l.store.objections = append(l.store.objections, *objection)
	return nil
}

func (l *memoryLocked) SetObjectionStatus(_ context.Context, objectionID string, status models.ObjectionStatus, at time.Time) error {
	for i := range l.store.objections {
		if l.store.objections[i].ObjectionID == objectionID && l.store.objections[i].Status == models.ObjectionPending {
			l.store.objections[i].Status = status
			resolved := at
			l.store.objections[i].ResolvedAt = &resolved
			return nil
		}
	}
	return sql.ErrNoRows
}

func (l *memoryLocked) RecordDocument(_ context.Context, doc *models.DocumentUpload) error {
	l.store.documents = append(l.store.documents, *doc)
	return nil
}

// fixedAssessor returns the same assessment for every application.
type fixedAssessor struct {
	assessment models.Assessment
}

func (f fixedAssessor) Assess(context.Context, models.ApplicantFacts, models.LoanRequest) models.Assessment {
	return f.assessment
}

// recordingDispatcher captures dispatched messages.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recordingDispatcher) Dispatch(_ context.Context, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingDispatcher) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, msg := range r.messages {
		out = append(out, msg.Subject)
	}
	return out
}
