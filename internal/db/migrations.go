package db

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and filesystem in package state.
var migrateMu sync.Mutex

// Migrate applies all pending migrations for the database dialect.
// Migrations are embedded and idempotent across restarts.
func Migrate(ctx context.Context, d *DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.dialect.gooseDialect()); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	dir := path.Join("migrations", string(d.dialect))
	if err := goose.UpContext(ctx, d.sql, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Version returns the currently applied migration version.
func Version(ctx context.Context, d *DB) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(d.dialect.gooseDialect()); err != nil {
		return 0, fmt.Errorf("setting migration dialect: %w", err)
	}

	v, err := goose.GetDBVersionContext(ctx, d.sql)
	if err != nil {
		return 0, fmt.Errorf("reading migration version: %w", err)
	}
	return v, nil
}
