package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies every *.sql file in migrations that has not been applied yet,
// in lexical order, each inside its own transaction. Applied file names are
// recorded in schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := applyMigration(ctx, pool, migrations, name); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, name string) error {
	var applied bool
	if err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
	).Scan(&applied); err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}

	if applied {
		return nil
	}

	body, err := fs.ReadFile(migrations, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)

		return err
	})
	if err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}

	slog.Info("Applied migration", "name", strings.TrimSuffix(name, ".sql"))

	return nil
}

// OpenMigrated applies migrations on a short-lived pool and then opens the
// application pool with opts. The split lets AfterConnect hooks depend on types
// (such as pgvector's) that the migrations create.
func OpenMigrated(ctx context.Context, databaseURL string, migrations fs.FS, opts ...PoolOption) (*pgxpool.Pool, error) {
	bootstrap, err := NewPostgresPool(ctx, databaseURL, WithMaxConns(1))
	if err != nil {
		return nil, err
	}

	err = Migrate(ctx, bootstrap, migrations)

	bootstrap.Close()

	if err != nil {
		return nil, err
	}

	return NewPostgresPool(ctx, databaseURL, opts...)
}
