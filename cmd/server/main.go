package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-console/internal/admin"
	"account-console/internal/config"
	"account-console/internal/domain"
	"account-console/internal/exporter"
	apphttp "account-console/internal/http"
	"account-console/internal/password"
	"account-console/internal/repository"
	"account-console/internal/repository/memory"
	"account-console/internal/repository/sqlite"
	"account-console/internal/service"
	"account-console/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountRepo, exportRepo, db, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Fatalf("open repositories: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	hasher, err := password.New(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatalf("password hasher: %v", err)
	}

	accountService := service.NewAccountService(accountRepo, hasher, logger)
	if err := seedAdministrator(ctx, cfg, accountService, logger); err != nil {
		logger.Fatalf("seed administrator: %v", err)
	}
	accountAdmin := admin.NewAccountAdmin(accountRepo, hasher)
	site := admin.NewSite()
	if err := admin.Setup(site, accountAdmin); err != nil {
		logger.Fatalf("setup console: %v", err)
	}

	opts := apphttp.Options{
		Accounts:  accountService,
		Admin:     accountAdmin,
		Site:      site,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.TokenTTL(),
		Logger:    logger,
	}

	var manager exporter.Manager
	if cfg.ExportsEnabled() {
		storageSvc, err := storage.NewFromConfig(ctx, cfg)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
		exportService := service.NewExportService(exportRepo)
		manager = exporter.NewManager(exporter.Config{
			Bucket:        cfg.Storage.Bucket,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			MaxConcurrent: cfg.Export.Workers,
			Logger:        logger,
		}, exportService, accountRepo, accountAdmin, storageSvc)

		if err := manager.Start(ctx); err != nil {
			logger.Fatalf("start export manager: %v", err)
		}
		if err := manager.Resume(ctx); err != nil {
			logger.Warnf("resume exports: %v", err)
		}
		opts.Exports, opts.Exporter, opts.Storage = exportService, manager, storageSvc
	} else {
		logger.Info("storage bucket not set, exports disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(opts).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if manager != nil {
		manager.Shutdown()
	}

	logger.Info("bye")
}

// openRepositories returns the configured adapters. db is nil for the memory driver.
func openRepositories(ctx context.Context, cfg config.Config) (repository.AccountRepository, repository.ExportRepository, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		return memory.NewAccountRepository(), memory.NewExportRepository(), nil, nil
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	accountRepo := sqlite.NewAccountRepository(db)
	exportRepo := sqlite.NewExportRepository(db)
	if err := accountRepo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("init account repository: %w", err)
	}
	if err := exportRepo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("init export repository: %w", err)
	}
	return accountRepo, exportRepo, db, nil
}

// seedAdministrator creates the configured administrator on first start. The
// memory driver has no other way to get a staff account.
func seedAdministrator(ctx context.Context, cfg config.Config, accounts service.AccountService, logger *logrus.Logger) error {
	if cfg.Admin.Email == "" {
		if cfg.Database.Driver == "memory" {
			logger.Warn("memory database without admin.email: no account can sign in to the console")
		}
		return nil
	}
	birthdate, err := domain.ParseDate(cfg.Admin.Birthdate)
	if err != nil {
		return fmt.Errorf("admin.birthdate: %w", err)
	}
	account, created, err := service.EnsureAdministrator(ctx, accounts, cfg.Admin.Email, birthdate, cfg.Admin.Password)
	if err != nil {
		return err
	}
	if created {
		logger.WithField("account_id", account.ID).Infof("seeded administrator %s", account.Email)
	}
	return nil
}
