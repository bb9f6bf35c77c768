package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ETAnderson/celltrack/internal/db"
	"github.com/ETAnderson/celltrack/internal/migrate"
)

type FactoryConfig struct {
	Backend       string
	MySQLDSN      string
	SQLitePath    string
	WorkbookPath  string
	RunMigrations bool
}

type FactoryResult struct {
	Store Store
	DB    *sql.DB // only set for mysql and sqlite
}

func NewStore(ctx context.Context, cfg FactoryConfig) (FactoryResult, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return FactoryResult{Store: NewMemoryStore()}, nil

	case "mysql":
		if strings.TrimSpace(cfg.MySQLDSN) == "" {
			return FactoryResult{}, errors.New("DB_DSN is required when STORE_BACKEND=mysql")
		}

		sqlDB, err := db.Open(db.Config{DSN: cfg.MySQLDSN})
		if err != nil {
			return FactoryResult{}, err
		}
		return openSQL(ctx, sqlDB, DialectMySQL, cfg.RunMigrations)

	case "sqlite":
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return FactoryResult{}, err
		}
		// A fresh sqlite file is useless without its schema.
		return openSQL(ctx, sqlDB, DialectSQLite, true)

	case "workbook":
		wb, err := NewWorkbookStore(cfg.WorkbookPath)
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Store: wb}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown STORE_BACKEND %q (use memory, mysql, sqlite or workbook)", backend)
	}
}

func openSQL(ctx context.Context, sqlDB *sql.DB, dialect Dialect, runMigrations bool) (FactoryResult, error) {
	if err := db.Ping(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return FactoryResult{}, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if runMigrations {
		if err := migrate.Apply(ctx, sqlDB, string(dialect)); err != nil {
			_ = sqlDB.Close()
			return FactoryResult{}, fmt.Errorf("migrate: %w", err)
		}
	}

	return FactoryResult{
		Store: NewSQLStore(sqlDB, dialect),
		DB:    sqlDB,
	}, nil
}
