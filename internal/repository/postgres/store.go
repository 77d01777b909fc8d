package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"canvasdesk/internal/domain/repositories"
	repo "canvasdesk/internal/domain/repositories/workspace"
)

// Store is the Remote workspace backend. Folder and canvas operations live
// in folder.go and canvas.go.
type Store struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
	now    func() time.Time
}

var _ repo.Store = (*Store)(nil)

// NewStore creates the Remote backend over an existing pool
func NewStore(config *RepositoryConfig) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) Kind() string { return backendName }

// db returns the transaction in ctx, or the pool
func (s *Store) db(ctx context.Context) repositories.DBTX {
	return GetExecutor(ctx, s.pool)
}
