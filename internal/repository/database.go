package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

type Database struct {
	db      *sql.DB
	dialect dialect
}

type DatabaseConfig struct {
	Driver         string
	DSN            string
	MigrationsPath string
}

func NewDatabase(cfg DatabaseConfig) (*Database, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d.name == DriverSQLite {
		// SQLite allows one writer; a single connection also serializes ledger transactions.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	database := &Database{db: db, dialect: d}
	if err := database.Migrate(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return database, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Migrate applies pending migrations. An empty migrationsPath uses the
// migrations embedded for the database driver.
func (d *Database) Migrate(migrationsPath string) error {
	driver, err := d.migrateDriver()
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	var m *migrate.Migrate
	if migrationsPath == "" {
		src, err := iofs.New(migrationsFS, "migrations/"+d.dialect.name)
		if err != nil {
			return fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, d.dialect.name, driver)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
	} else {
		absPath, err := filepath.Abs(migrationsPath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for migrations: %w", err)
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return fmt.Errorf("migrations directory does not exist: %s", absPath)
		}
		m, err = migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), d.dialect.name, driver)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (d *Database) migrateDriver() (database.Driver, error) {
	switch d.dialect.name {
	case DriverPostgres:
		return migratepg.WithInstance(d.db, &migratepg.Config{})
	case DriverSQLite:
		return migratesqlite.WithInstance(d.db, &migratesqlite.Config{})
	}
	return nil, fmt.Errorf("no migration driver for %q", d.dialect.name)
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}

func (d *Database) query(q string) string {
	return d.dialect.rebind(q)
}
