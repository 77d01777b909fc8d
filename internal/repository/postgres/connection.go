package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canvasdesk/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table and function names
type TableNames struct {
	Prefix   string
	Folders  string
	Canvases string

	NextSortOrder    string // server-side function
	EnsureRootFolder string // server-side function
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Prefix:           prefix,
		Folders:          fmt.Sprintf("%sfolders", prefix),
		Canvases:         fmt.Sprintf("%scanvases", prefix),
		NextSortOrder:    fmt.Sprintf("%snext_sort_order", prefix),
		EnsureRootFolder: fmt.Sprintf("%sensure_root_folder", prefix),
	}
}

// CreateConnectionPool creates a pgx connection pool. The pool connects
// lazily, so an unreachable database does not fail here; call Ping to find
// out whether the Remote backend is usable right now.
//
// Port 6543 (Supabase transaction pooler / PgBouncer) does not support
// prepared statements. When it is detected and the connection string does
// not set default_query_exec_mode itself, QueryExecModeCacheDescribe is used:
// it keeps the extended protocol (needed to encode JSONB parameters) while
// only caching statement descriptions.
//
// Table names are interpolated with fmt.Sprintf before the SQL reaches the
// server, so each prefix gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 0

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

// Ping checks the database is reachable. Failures are reported as
// BackendUnavailable.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the transaction.
// Otherwise, it returns the provided pool.
// This enables repositories to automatically participate in transactions when they exist.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	// Check if there's a transaction in the context
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	// No transaction, use the pool
	return pool
}
