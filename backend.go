package storefront

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/storefront/driver"
	"goflare.io/storefront/persist"
)

var (
	ErrUnknownBackend = errors.New("storefront: unknown backend")
	ErrRemoteRejected = errors.New("storefront: remote request rejected")
)

// CloseFunc releases the connections behind a backend.
type CloseFunc func() error

func noopClose() error { return nil }

// OpenBackend builds the storage backend named by cfg.Backend. Remote
// backends are wrapped in a circuit breaker.
func OpenBackend(ctx context.Context, cfg Config, logger *zap.Logger) (persist.Backend, CloseFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return persist.NewMemoryBackend(), noopClose, nil

	case BackendFile:
		backend, err := persist.NewFileBackend(cfg.StateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open state dir: %w", err)
		}
		return backend, noopClose, nil

	case BackendRedis:
		client, err := driver.ConnectRedis(ctx, cfg.RedisAddr, "", 0, logger)
		if err != nil {
			return nil, nil, err
		}
		backend := persist.NewBreakerBackend("redis", persist.NewRedisBackend(client), logger)
		return backend, client.Close, nil

	case BackendPostgres:
		pool, err := driver.ConnectSQL(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		pg := persist.NewPostgresBackend(pool, logger)
		if err = pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to prepare state table: %w", err)
		}
		backend := persist.NewBreakerBackend("postgres", pg, logger)
		return backend, func() error {
			pool.Close()
			return nil
		}, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
