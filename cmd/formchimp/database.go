package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	formchimpmigrations "github.com/goliatone/go-formchimp/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// persistenceConfig adapts the [database] section to the persistence client.
type persistenceConfig struct {
	db Database
}

func (c persistenceConfig) GetDebug() bool {
	return c.db.Debug
}

func (c persistenceConfig) GetDriver() string {
	return c.db.Driver
}

func (c persistenceConfig) GetServer() string {
	return c.db.DSN
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	if c.db.PingTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.db.PingTimeoutSeconds) * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "formchimp-cli"
}

// openPersistence connects to the configured database and applies the
// migrations for its dialect.
func openPersistence(ctx context.Context, cfg Database) (*persistence.Client, error) {
	var (
		dialect       schema.Dialect
		migrationKind string
	)
	switch cfg.Driver {
	case driverSQLite:
		dialect = sqlitedialect.New()
		migrationKind = formchimpmigrations.DialectSQLite
	case driverPostgres:
		dialect = pgdialect.New()
		migrationKind = formchimpmigrations.DialectPostgres
	default:
		return nil, fmt.Errorf("database.driver: unsupported value %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Driver == driverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{db: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	_, err = formchimpmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, formchimpmigrations.WithValidationTargets(migrationKind))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return client, nil
}
