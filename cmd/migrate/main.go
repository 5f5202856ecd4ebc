package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"ad-autopilot/internal/infrastructure/config"
	"ad-autopilot/internal/infrastructure/logging"
)

const trackingTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("dir", "db/migrations", "path to migrations directory")
	flag.Parse()

	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.DB.DSN == "" {
		log.Fatal().Msg("db.dsn is not set, cannot run migrations")
	}

	files, err := migrationFiles(*migrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("list migrations failed")
	}

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database failed")
	}
	defer db.Close()

	applied, err := apply(context.Background(), db, files)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	fmt.Printf("migrations complete (%d applied, %d total)\n", applied, len(files))
}

// migrationFiles 依檔名排序回傳目錄下所有 .sql 檔。
func migrationFiles(dir string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(absDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql migrations found in %s", absDir)
	}
	sort.Strings(files)
	return files, nil
}

// apply 依序執行尚未套用的 migration，每個檔案與其紀錄在同一個交易內。
func apply(ctx context.Context, db *sql.DB, files []string) (int, error) {
	if _, err := db.ExecContext(ctx, trackingTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied := 0
	for _, f := range files {
		name := filepath.Base(f)
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check %s: %w", name, err)
		}
		if exists {
			log.Debug().Str("file", name).Msg("migration already applied")
			continue
		}
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}

		log.Info().Str("file", name).Msg("applying migration")
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit %s: %w", name, err)
		}
		applied++
	}
	return applied, nil
}
