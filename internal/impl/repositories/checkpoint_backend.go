package repositories

import (
	"context"
	"path/filepath"

	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"
	"github.com/drujensen/aibrowser/internal/impl/database"
	repositories_json "github.com/drujensen/aibrowser/internal/impl/repositories/json"
	repositories_memory "github.com/drujensen/aibrowser/internal/impl/repositories/memory"
	repositories_mongo "github.com/drujensen/aibrowser/internal/impl/repositories/mongo"
	repositories_postgres "github.com/drujensen/aibrowser/internal/impl/repositories/postgres"
	repositories_sqlite "github.com/drujensen/aibrowser/internal/impl/repositories/sqlite"

	"go.uber.org/zap"
)

// Checkpoint is an opened checkpoint store and the function that releases it.
type Checkpoint struct {
	Repository interfaces.CheckpointRepository
	Close      func(ctx context.Context) error
}

func noopClose(context.Context) error { return nil }

// OpenCheckpoint opens the backend named by cfg.Backend.
func OpenCheckpoint(ctx context.Context, cfg config.CheckpointConfig, logger *zap.Logger) (*Checkpoint, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return &Checkpoint{Repository: repositories_memory.NewMemoryCheckpointRepository(), Close: noopClose}, nil

	case config.BackendFile:
		repo, err := repositories_json.NewJSONCheckpointRepository(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Checkpoint{Repository: repo, Close: noopClose}, nil

	case config.BackendSQLite:
		repo, err := repositories_sqlite.NewSQLiteCheckpointRepository(filepath.Join(cfg.Path, "checkpoints.db"), logger)
		if err != nil {
			return nil, errs.InternalErrorf("sqlite checkpoint: %v", err)
		}
		return &Checkpoint{Repository: repo, Close: func(context.Context) error { return repo.Close() }}, nil

	case config.BackendMongo:
		db, err := database.NewMongoDB(cfg.URI, cfg.Database, logger)
		if err != nil {
			return nil, errs.InternalErrorf("mongo checkpoint: %v", err)
		}
		repo := repositories_mongo.NewMongoCheckpointRepository(db.Collection("threads"))
		return &Checkpoint{Repository: repo, Close: db.Disconnect}, nil

	case config.BackendPostgres:
		pool, repo, err := repositories_postgres.Connect(ctx, cfg.URI, logger)
		if err != nil {
			return nil, err
		}
		return &Checkpoint{Repository: repo, Close: func(context.Context) error { pool.Close(); return nil }}, nil
	}
	return nil, errs.ConfigErrorf("unsupported checkpoint backend %q", cfg.Backend)
}
