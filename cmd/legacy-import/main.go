package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/loan-portal-api/internal/legacy"
	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/repository"
	"github.com/noah-isme/loan-portal-api/pkg/config"
	"github.com/noah-isme/loan-portal-api/pkg/database"
	"github.com/noah-isme/loan-portal-api/pkg/logger"
)

func main() {
	var (
		dir       string
		dryRun    bool
		seedAdmin string
	)

	flag.StringVar(&dir, "dir", "legacy_data", "Directory holding the legacy CSV files")
	flag.BoolVar(&dryRun, "dry-run", false, "Parse the files and print row counts without writing")
	flag.StringVar(&seedAdmin, "seed-admin", "", "Create or reset an admin account, as username:password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	snap := legacy.NewReader(dir, logr).Read()
	if dryRun {
		printCounts("rows found", legacy.Plan(snap))
		return
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.RunMigrations(database.MigrationURL(cfg.Database), cfg.Migrations.Dir); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	staff := repository.NewStaffRepository(db)
	importer := legacy.NewImporter(legacy.Stores{
		Users:         repository.NewUserRepository(db),
		Staff:         staff,
		Applications:  repository.NewApplicationRepository(db),
		Documents:     repository.NewDocumentRepository(db),
		Alerts:        repository.NewAlertRepository(db),
		Objections:    repository.NewObjectionRepository(db),
		History:       repository.NewHistoryRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}, logr)

	summary, err := importer.Run(ctx, snap)
	if summary != nil {
		printCounts("imported", summary.Imported)
		printCounts("skipped", summary.Skipped)
		printCounts("failed", summary.Failed)
	}
	if err != nil {
		logr.Sugar().Errorw("legacy import incomplete", "error", err)
	}

	if seedAdmin != "" {
		if err := upsertAdmin(ctx, staff, seedAdmin); err != nil {
			logr.Sugar().Fatalw("failed to seed admin", "error", err)
		}
		logr.Sugar().Infow("admin account seeded")
	}

	if err != nil {
		os.Exit(1)
	}
}

func upsertAdmin(ctx context.Context, staff *repository.StaffRepository, credentials string) error {
	username, password, ok := strings.Cut(credentials, ":")
	if !ok || username == "" || password == "" {
		return fmt.Errorf("seed-admin must be username:password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return staff.Upsert(ctx, &models.Staff{
		Username:     username,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	})
}

func printCounts(label string, counts map[string]int) {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	fmt.Printf("%s:\n", label)
	for _, table := range tables {
		fmt.Printf("  %-22s %d\n", table, counts[table])
	}
}
