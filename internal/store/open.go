package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/database"
)

// Open builds the backend selected by cfg.Backend. For "dual" the database
// is primary and the file log is the secondary copy.
func Open(ctx context.Context, cfg config.PersistenceConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.File.Dir)
	case "postgres":
		return openPostgres(ctx, cfg.Postgres)
	case "dual":
		pg, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		fs, err := NewFileStore(cfg.File.Dir)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		return NewDualStore(pg, fs, logger), nil
	default:
		return nil, &config.ConfigError{Field: "persistence.backend", Msg: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	pg, err := database.NewPostgres(database.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
	})
	if err != nil {
		return nil, pgErr("open", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pg.Ping(ctx); err != nil {
		_ = pg.Close()
		return nil, pgErr("ping", err)
	}
	if err := pg.CreateTables(ctx); err != nil {
		_ = pg.Close()
		return nil, pgErr("migrate", err)
	}
	return NewPostgresStore(pg), nil
}
