package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ecosetu/internal/core/config"
	"github.com/vietddude/ecosetu/internal/infra/storage"
	"github.com/vietddude/ecosetu/internal/infra/storage/memory"
	"github.com/vietddude/ecosetu/internal/infra/storage/postgres"
)

// Storage bundles the repositories of one backend.
type Storage struct {
	Transactions storage.TransactionRepository
	Negotiations storage.NegotiationRepository
	Materials    storage.MaterialRepository
	Parties      storage.PartyRepository

	// DB is nil in memory mode.
	DB *postgres.DB
	// Memory is nil in postgres mode.
	Memory *memory.MemoryStorage
}

// OpenStorage connects to postgres when a URL is configured and falls back to
// process memory otherwise.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (*Storage, error) {
	if cfg.URL == "" {
		store := memory.NewMemoryStorage()
		slog.Info("Using Memory storage")
		return &Storage{
			Transactions: memory.NewTxRepo(store),
			Negotiations: memory.NewNegotiationRepo(store),
			Materials:    memory.NewMaterialRepo(store),
			Parties:      memory.NewPartyRepo(store),
			Memory:       store,
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if migrate {
		if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
	}

	slog.Info("Using PostgreSQL storage")
	return &Storage{
		Transactions: postgres.NewTxRepo(db),
		Negotiations: postgres.NewNegotiationRepo(db),
		Materials:    postgres.NewMaterialRepo(db),
		Parties:      postgres.NewPartyRepo(db),
		DB:           db,
	}, nil
}

// Close releases the database pool, if any.
func (s *Storage) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
