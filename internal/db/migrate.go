package db

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"pawtrack/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations. It opens a short-lived
// database/sql handle over the pool's config because goose drives
// migrations through database/sql, not pgx natively.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set migration dialect", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply migrations", err)
	}
	return nil
}
