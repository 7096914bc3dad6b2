// Package catalog adapts the product catalog into a pricing.PriceLookup.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/storefront/driver"
	"goflare.io/storefront/models"
)

var ErrProductNotFound = errors.New("catalog: product not found")

const (
	selectProduct = `SELECT id, name, category_id, unit_price::text, currency, updated_at
FROM products WHERE id = $1`
	selectPrices  = `SELECT id, unit_price::text FROM products WHERE id = ANY($1)`
	upsertProduct = `INSERT INTO products (id, name, category_id, unit_price, currency, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category_id = EXCLUDED.category_id,
	unit_price = EXCLUDED.unit_price,
	currency = EXCLUDED.currency,
	updated_at = EXCLUDED.updated_at`
)

var _ Repository = (*repository)(nil)

type Repository interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	UpsertProduct(ctx context.Context, product *models.Product) error
}

type repository struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &repository{
		conn:   conn,
		tm:     driver.NewTransactionManager(conn, logger),
		logger: logger,
	}
}

func (r *repository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var (
		product    models.Product
		categoryID *int64
		unitPrice  string
		currency   string
	)
	err := r.conn.QueryRow(ctx, selectProduct, id).Scan(
		&product.ID, &product.Name, &categoryID, &unitPrice, &currency, &product.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}

	if product.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("catalog: product %s has invalid price %q: %w", id, unitPrice, err)
	}
	if categoryID != nil {
		cid := uint64(*categoryID)
		product.CategoryID = &cid
	}
	product.Currency = stripe.Currency(currency)

	return &product, nil
}

// ListPrices returns unit prices for the ids that exist; unknown ids are absent
// from the result.
func (r *repository) ListPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	rows, err := r.conn.Query(ctx, selectPrices, ids)
	if err != nil {
		r.logger.Error("Failed to list prices", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, unitPrice string
		if err = rows.Scan(&id, &unitPrice); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(unitPrice)
		if err != nil {
			r.logger.Warn("Skipping product with invalid price", zap.String("product_id", id), zap.String("unit_price", unitPrice))
			continue
		}
		prices[id] = price
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return prices, nil
}

func (r *repository) UpsertProduct(ctx context.Context, product *models.Product) error {
	var categoryID *int64
	if product.CategoryID != nil {
		cid := int64(*product.CategoryID)
		categoryID = &cid
	}

	err := r.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertProduct,
			product.ID, product.Name, categoryID, product.UnitPrice.String(), string(product.Currency))
		return err
	})
	if err != nil {
		r.logger.Error("Failed to upsert product", zap.String("product_id", product.ID), zap.Error(err))
		return err
	}
	return nil
}
