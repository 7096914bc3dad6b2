package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/storefront/driver"
)

const (
	createStateTable = `CREATE TABLE IF NOT EXISTS storefront_state (
	slot       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectState = `SELECT value FROM storefront_state WHERE slot = $1`
	upsertState = `INSERT INTO storefront_state (slot, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (slot) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	upsertRetries = 3
)

var _ Backend = (*PostgresBackend)(nil)

// PostgresBackend keeps slots in the storefront_state table.
type PostgresBackend struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewPostgresBackend(conn driver.PostgresPool, logger *zap.Logger) *PostgresBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresBackend{
		conn:   conn,
		tm:     driver.NewTransactionManager(conn, logger),
		logger: logger,
	}
}

// EnsureSchema creates the state table when it does not exist yet.
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, createStateTable); err != nil {
		p.logger.Error("Failed to create state table", zap.Error(err))
		return fmt.Errorf("persist: create state table: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	var value string
	err := p.conn.QueryRow(ctx, selectState, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("persist: postgres get %q: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	err := p.tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertState, key, value)
		return err
	}, upsertRetries)
	if err != nil {
		return fmt.Errorf("persist: postgres set %q: %w", key, err)
	}
	return nil
}
