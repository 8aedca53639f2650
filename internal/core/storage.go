package core

import (
	"context"
	"fmt"
	"io"

	"agentbook/internal/config"
	"agentbook/internal/idgen"
	"agentbook/internal/infra/persistence/memory"
	"agentbook/internal/infra/persistence/postgres"
	"agentbook/internal/infra/persistence/sqlite"
	"agentbook/pkg/domain"
)

// OpenPersistentStore selects a backend from cfg.StorageDriver:
//
//	memory   - in-memory only (tests / ephemeral)
//	sqlite   - embedded sqlite file at cfg.SQLitePath
//	postgres - PostgreSQL server at cfg.PostgresDSN
//
// Generated identifiers use cfg.IDLength characters.
func OpenPersistentStore(ctx context.Context, cfg *config.Config, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	opts := []memory.Option{memory.WithIDGenerator(idgen.New(idgen.WithLength(cfg.IDLength)))}
	switch cfg.StorageDriver {
	case "", config.StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// CloseStore releases the resources held by durable stores. In-memory stores
// need no cleanup.
func CloseStore(store domain.PersistentStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
