package db

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// InitDB connects to the database. sqlite3 connections always open immediate
// transactions with foreign keys enforced, on every pooled connection.
func InitDB(driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	slog.Info("Database connected.", "driver", driver)
	return db, nil
}

// sqliteDSN adds the connection parameters that writers rely on unless the DSN
// already sets them.
func sqliteDSN(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		params = url.Values{}
	}
	required := [][2]string{{"_txlock", "immediate"}, {"_foreign_keys", "1"}}
	for _, kv := range required {
		if !params.Has(kv[0]) {
			query = strings.TrimPrefix(query+"&"+kv[0]+"="+kv[1], "&")
		}
	}
	return base + "?" + query
}

// RunMigrations applies every pending migration from sourceURL.
func RunMigrations(db *sqlx.DB, sourceURL string) error {
	var (
		driver database.Driver
		err    error
	)
	switch db.DriverName() {
	case "sqlite3":
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("no migration driver for %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver instance: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	slog.Info("Migrations applied.", "version", version, "dirty", dirty)
	return nil
}
