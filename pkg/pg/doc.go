// Package pg provides PostgreSQL connectivity helpers built on the pgx/v5
// driver: environment-driven pool configuration, connect retries, embedded
// goose migrations, and error classification helpers.
//
// The package is deliberately small. It owns how a pool is opened and how
// driver failures are told apart; what gets stored lives in pgstore, which
// builds the transition log store on top of a pool opened here.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer pool.Close()
//
// Config carries env tags, so it loads through
// github.com/aw-studio/go-states/pkg/config or any env-tag parser.
//
// Migrations ship as an fs.FS so libraries can embed their schema:
//
//	//go:embed migrations/*.sql
//	var migrationsFS embed.FS
//
//	err := pg.Migrate(ctx, pool, migrationsFS, "migrations", "statelog_schema_version", slog.Default())
//
// # Error classification
//
// The driver reports most failures as *pgconn.PgError values keyed by
// SQLSTATE. The Is* helpers unwrap them so callers branch on meaning instead
// of code strings: IsDuplicateKeyError for unique violations,
// IsSerializationFailureError for serialization failures and deadlocks that
// warrant re-running the transaction, IsNotFoundError for pgx.ErrNoRows.
package pg
