package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"auction-market/internal/config"
	"auction-market/internal/repository/postgres"
	"auction-market/utils"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	if err := migrateAll(*configPath, *down); err != nil {
		utils.Error("migration run failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	utils.Info("migration run finished successfully", nil)
}

func migrateAll(configPath string, down bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	utils.SetLevel(cfg.LogLevel)

	if cfg.Storage.Postgres.DSN == "" {
		return errors.New("storage.postgres.dsn is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Storage.Postgres.DSN, postgres.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(postgres.Migrations, postgres.MigrationsDir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verr)
	}
	utils.Info("schema migrated", map[string]any{"version": version, "dirty": dirty, "down": down})
	return nil
}
