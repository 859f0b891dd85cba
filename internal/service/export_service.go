package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/legacy"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/pkg/export"
	"github.com/noah-isme/loan-portal-api/pkg/storage"
)

type exportViewSource interface {
	AllViews(ctx context.Context) ([]models.ApplicationView, error)
}

type comprehensiveLister interface {
	ListComprehensive(ctx context.Context, ownerEmail string) ([]models.LoanApplication, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	Rows         int
	ExpiresAt    time.Time
}

var exportHeaders = []string{
	"application_id", "source", "first_name", "last_name", "email", "phone",
	"loan_type", "loan_amount", "annual_income", "status", "eligibility_status",
	"verification_status", "created_at",
}

// ExportService renders application listings and persists the files.
type ExportService struct {
	views         exportViewSource
	comprehensive comprehensiveLister
	storage       fileStorage
	csv           *export.CSVExporter
	pdf           tableRenderer
	xlsx          tableRenderer
	legacy        *legacy.Writer
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           ExportConfig
	now           func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(views exportViewSource, comprehensive comprehensiveLister, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		views:         views,
		comprehensive: comprehensive,
		storage:       files,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		xlsx:          export.NewXLSXExporter(),
		legacy:        legacy.NewWriter(),
		signer:        signer,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Generate renders the job's listing and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	payload, rows, err := s.render(ctx, job)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.downloadURL(token),
		Format:       job.Format,
		Rows:         rows,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, int, error) {
	if job.Format == models.ExportFormatLegacyCSV {
		apps, err := s.comprehensive.ListComprehensive(ctx, "")
		if err != nil {
			return nil, 0, fmt.Errorf("list applications: %w", err)
		}
		apps = filterComprehensive(apps, job.Params)
		payload, err := s.legacy.Render(apps)
		return payload, len(apps), err
	}

	views, err := s.views.AllViews(ctx)
	if err != nil {
		return nil, 0, err
	}
	views = filterViews(views, models.ApplicationFilter{Status: job.Params.Status, LoanType: job.Params.LoanType})
	dataset := viewDataset(views)
	title := exportTitle(job.Params)

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	return payload, len(views), err
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// ResultTTL exposes the configured result lifetime.
func (s *ExportService) ResultTTL() time.Duration {
	return s.cfg.ResultTTL
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/admin/exports/download?token=%s", prefix, token)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	name := "loan_applications"
	if job.Format == models.ExportFormatLegacyCSV {
		name = "comprehensive_loans"
	}
	if job.Params.Status != "" {
		name += "_" + string(job.Params.Status)
	}
	suffix := job.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%s_%s.%s", name, s.now().UTC().Format("20060102T150405"), suffix, job.Format.Extension())
}

func viewDataset(views []models.ApplicationView) export.Dataset {
	data := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(views))}
	for _, view := range views {
		data.Rows = append(data.Rows, map[string]string{
			"application_id":      view.ApplicationID,
			"source":              string(view.Source),
			"first_name":          view.FirstName,
			"last_name":           view.LastName,
			"email":               view.Email,
			"phone":               view.Phone,
			"loan_type":           view.LoanType,
			"loan_amount":         view.LoanAmount,
			"annual_income":       view.AnnualIncome,
			"status":              string(view.Status),
			"eligibility_status":  string(view.EligibilityStatus),
			"verification_status": view.VerificationStatus,
			"created_at":          view.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}

func filterComprehensive(apps []models.LoanApplication, params models.ExportJobParams) []models.LoanApplication {
	out := apps[:0:0]
	for _, app := range apps {
		if params.Status != "" && app.Status != params.Status {
			continue
		}
		if params.LoanType != "" && !strings.EqualFold(app.LoanType, params.LoanType) {
			continue
		}
		out = append(out, app)
	}
	return out
}

func exportTitle(params models.ExportJobParams) string {
	title := "Loan Applications"
	if params.Status != "" {
		title += " - " + string(params.Status)
	}
	if params.LoanType != "" {
		title += " - " + params.LoanType
	}
	return title
}
