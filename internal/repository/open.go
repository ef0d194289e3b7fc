package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/fuzzyrestaurants/finder/migrations"
	"github.com/fuzzyrestaurants/finder/pkg/database"
)

// Open migrates the restaurants schema and returns a pool whose connections
// know the pgvector types.
func Open(ctx context.Context, databaseURL string, opts ...database.PoolOption) (*pgxpool.Pool, error) {
	opts = append(opts, database.WithAfterConnect(pgxvec.RegisterTypes))

	db, err := database.OpenMigrated(ctx, databaseURL, migrations.FS, opts...)
	if err != nil {
		return nil, fmt.Errorf("open restaurants database: %w", err)
	}

	return db, nil
}
