package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"account-console/internal/config"
	"account-console/internal/password"
	"account-console/internal/repository/sqlite"
	"account-console/internal/service"
	"account-console/internal/storage"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp wires the account service against the configured sqlite database.
func openApp(ctx context.Context) (*app, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, fmt.Errorf("accountctl needs a persistent database, got driver %q", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	accountRepo := sqlite.NewAccountRepository(db)
	if err := accountRepo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init account repository: %w", err)
	}

	hasher, err := password.New(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	a := &app{
		accounts:  service.NewAccountService(accountRepo, hasher, logger),
		bucket:    cfg.Storage.Bucket,
		keyPrefix: cfg.Storage.KeyPrefix,
	}
	if cfg.ExportsEnabled() {
		a.storage, err = storage.NewFromConfig(ctx, cfg)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	return a, func() { db.Close() }, nil
}
