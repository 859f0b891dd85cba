package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/loan-portal-api/api/swagger"
	"github.com/noah-isme/loan-portal-api/internal/handler"
	internalmiddleware "github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
	"github.com/noah-isme/loan-portal-api/internal/service"
	"github.com/noah-isme/loan-portal-api/pkg/cache"
	"github.com/noah-isme/loan-portal-api/pkg/config"
	"github.com/noah-isme/loan-portal-api/pkg/database"
	"github.com/noah-isme/loan-portal-api/pkg/events"
	"github.com/noah-isme/loan-portal-api/pkg/jobs"
	"github.com/noah-isme/loan-portal-api/pkg/logger"
	"github.com/noah-isme/loan-portal-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/loan-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/loan-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/loan-portal-api/pkg/storage"
)

// @title Loan Portal API
// @version 1.0.0
// @description Loan application portal: applicant submissions, eligibility scoring, review workflow and admin reporting
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.AutoMigrate {
		if err := database.RunMigrations(database.MigrationURL(cfg.Database), cfg.Migrations.Dir); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := buildApp(ctx, cfg, db, logr)
	defer app.close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(app.metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	app.routes.RegisterOps(r)
	app.routes.Register(r.Group(cfg.APIPrefix))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type application struct {
	routes  handler.Routes
	metrics *service.MetricsService
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) *application {
	app := &application{metrics: service.NewMetricsService()}
	validate := validator.New()

	users := repository.NewUserRepository(db)
	staff := repository.NewStaffRepository(db)
	applications := repository.NewApplicationRepository(db)
	documents := repository.NewDocumentRepository(db)
	history := repository.NewHistoryRepository(db)
	objections := repository.NewObjectionRepository(db)
	alerts := repository.NewAlertRepository(db)
	notificationLogs := repository.NewNotificationRepository(db)
	exportJobs := repository.NewExportJobRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching and token revocation disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(client, cfg.Redis.KeyPrefix)
			app.closers = append(app.closers, func() { _ = client.Close() })
		}
	}
	var cacheStore service.CacheRepository
	if cacheRepo != nil {
		cacheStore = cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, app.metrics, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)

	var publisher events.Publisher
	if len(cfg.Events.Brokers) > 0 {
		publisher = events.NewProducer(cfg.Events.Brokers, 5*time.Second)
	} else {
		publisher = events.NewLogPublisher(logr)
	}
	app.closers = append(app.closers, func() { _ = publisher.Close() })

	var mail service.MailSender
	if cfg.Mail.Enabled() {
		mail = mailer.NewSMTPMailer(cfg.Mail)
	} else {
		logr.Sugar().Infow("smtp credentials missing, notifications will be logged only")
	}
	notifications := service.NewNotificationService(mail, notificationLogs, app.metrics, logr, service.NotificationConfig{
		Workers:    cfg.Mail.Workers,
		Retries:    cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
	})
	notifications.Start(ctx)
	app.closers = append(app.closers, notifications.Stop)

	hooks := service.NewLifecycleHooks(service.HooksConfig{
		Alerts:     alerts,
		Notifier:   notifications,
		Templates:  service.NewTemplates(cfg.PortalURL),
		Events:     service.NewEventPublisher(publisher, cfg.Events.Topic, logr),
		Cache:      cacheSvc,
		Metrics:    app.metrics,
		AdminEmail: cfg.Mail.AdminEmail,
		Logger:     logr,
	})

	var remote service.Scorer
	if cfg.Scorer.Enabled() {
		remote = service.NewAIScorer(cfg.Scorer, logr)
	} else {
		logr.Sugar().Infow("remote scorer not configured, using rule scorer")
	}
	eligibility := service.NewEligibilityService(remote, service.NewRuleScorer(), cfg.Scorer.Timeout, app.metrics, logr)

	applicationSvc := service.NewApplicationService(applications, history, objections, alerts, eligibility, hooks, validate, logr)
	workflowSvc := service.NewWorkflowService(applications, applicationSvc, documents, hooks, validate, logr)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	documentSvc := service.NewDocumentService(applications, applicationSvc, documents, history, uploads,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		hooks, validate, logr, service.DocumentServiceConfig{
			MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		})

	applicantAuth := service.NewAuthService(users, staff, cacheSvc, validate, logr, service.AuthConfig{
		Namespace:  models.NamespaceApplicant,
		Secret:     cfg.JWT.ApplicantSecret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})
	staffAuth := service.NewAuthService(users, staff, cacheSvc, validate, logr, service.AuthConfig{
		Namespace:  models.NamespaceStaff,
		Secret:     cfg.JWT.StaffSecret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	dashboardHandler := handler.NewDashboardHandler(service.NewDashboardService(service.DashboardServiceParams{
		Applications: applicationSvc,
		Documents:    documents,
		History:      history,
		Objections:   objections,
		Cache:        cacheSvc,
		Logger:       logr,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	}), cfg.Dashboard.Enabled)

	exportHandler := handler.NewExportHandler(nil)
	if cfg.Exports.Enabled {
		exportHandler = handler.NewExportHandler(buildExports(ctx, cfg, app, exportJobs, applicationSvc, applications, logr))
	}

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	app.routes = handler.Routes{
		ApplicantGate: applicantAuth,
		StaffGate:     staffAuth,
		Auth: handler.NewAuthHandler(applicantAuth, staffAuth, handler.CookieConfig{
			Secure: cfg.Session.CookieSecure,
			Domain: cfg.Session.CookieDomain,
		}),
		Applications: handler.NewApplicationHandler(applicationSvc),
		Workflow:     handler.NewWorkflowHandler(workflowSvc),
		Documents:    handler.NewDocumentHandler(documentSvc),
		Dashboard:    dashboardHandler,
		Exports:      exportHandler,
		Health:       handler.NewHealthHandler(app.metrics, checks),
	}
	return app
}

func buildExports(ctx context.Context, cfg *config.Config, app *application, repo *repository.ExportJobRepository, views *service.ApplicationService, comprehensive *repository.ApplicationRepository, logr *zap.Logger) *service.ExportJobService {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	exporter := service.NewExportService(views, comprehensive, files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}, logr)
	worker := service.NewExportWorker(repo, exporter, app.metrics, cfg.Exports.WorkerRetries, logr)

	var exportJobs *service.ExportJobService
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, cause error) {
			exportJobs.MarkExhausted(job, cause)
		},
	})
	exportJobs = service.NewExportJobService(repo, queue, exporter, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})

	queue.Start(ctx)
	app.closers = append(app.closers, queue.Stop)
	exportJobs.RecoverPendingJobs(ctx)
	exportJobs.StartCleanup(ctx)
	return exportJobs
}
