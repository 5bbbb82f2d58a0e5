package pgstore

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aw-studio/go-states/pkg/pg"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// VersionTable is the goose version table used by Migrate. It is separate
// from any version table the host application keeps for its own schema.
const VersionTable = "state_transitions_schema_version"

// Migrate provisions the default transition log table and its indexes from
// the embedded migrations. It is safe to run on every startup; already
// applied migrations are skipped. A nil log falls back to slog.Default().
//
// Deployments that manage their own schema (for example when using WithTable)
// can skip Migrate entirely.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	return pg.Migrate(ctx, pool, migrationsFS, "migrations", VersionTable, log)
}
