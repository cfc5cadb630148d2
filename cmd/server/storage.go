package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerbook/internal/adapter/http/handler"
	"github.com/iho/ledgerbook/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgerbook/internal/adapter/repository/postgres"
	"github.com/iho/ledgerbook/internal/adapter/repository/sqlite"
	"github.com/iho/ledgerbook/internal/infrastructure/config"
	"github.com/iho/ledgerbook/internal/infrastructure/postgres"
	"github.com/iho/ledgerbook/internal/usecase"
)

// backend is one storage driver's set of stores.
type backend struct {
	txManager usecase.TransactionManager
	entries   usecase.EntryStore
	balances  usecase.BalanceStore
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	checks    []handler.Check
	close     func() error
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		return openPostgres(ctx, cfg, log)
	case config.StorageSQLite:
		return openSQLite(ctx, cfg, log)
	case config.StorageMemory:
		return openMemory(log), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &backend{
		txManager: postgresRepo.NewTxManager(pool),
		entries:   postgresRepo.NewEntryRepository(pool),
		balances:  postgresRepo.NewBalanceRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		retrier:   postgresRepo.NewRetrier(log),
		checks:    []handler.Check{{Name: "postgres", Probe: pool.Ping}},
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func openSQLite(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")

	return &backend{
		txManager: sqlite.NewTxManager(db),
		entries:   sqlite.NewEntryRepository(db),
		balances:  sqlite.NewBalanceRepository(db),
		outbox:    sqlite.NewOutboxRepository(db),
		retrier:   postgresRepo.NewRetrier(log, postgresRepo.WithRetryable(sqlite.IsBusy)),
		checks:    []handler.Check{{Name: "sqlite", Probe: db.PingContext}},
		close:     db.Close,
	}, nil
}

func openMemory(log zerolog.Logger) *backend {
	log.Warn().Msg("using in-memory storage; data is lost on restart")

	store := memory.NewStore()
	return &backend{
		txManager: store,
		entries:   store,
		balances:  store,
		outbox:    memory.NewOutbox(store),
		close:     func() error { return nil },
	}
}
