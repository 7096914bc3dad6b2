package catalog

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/pricing"
)

const (
	defaultPriceTTL     = 10 * time.Minute
	defaultQueryTimeout = 2 * time.Second

	cacheCounters    = 1e5
	cacheMaxCost     = 1 << 14
	cacheBufferItems = 64
)

var _ pricing.PriceLookup = (*CachedLookup)(nil)

// priceEntry is cached for unknown products too so a deleted product does not
// hit the database on every summary.
type priceEntry struct {
	price decimal.Decimal
	found bool
}

// CachedLookup serves unit prices from an in-process cache backed by the
// catalog repository.
type CachedLookup struct {
	repo    Repository
	cache   *ristretto.Cache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func NewCachedLookup(repo Repository, ttl time.Duration, logger *zap.Logger) (*CachedLookup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultPriceTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cacheCounters,
		MaxCost:            cacheMaxCost,
		BufferItems:        cacheBufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &CachedLookup{
		repo:    repo,
		cache:   cache,
		ttl:     ttl,
		timeout: defaultQueryTimeout,
		logger:  logger,
	}, nil
}

// Price reports the unit price of itemKey. Repository failures are logged and
// treated as a missing price; they are not cached.
func (l *CachedLookup) Price(itemKey string) (decimal.Decimal, bool) {
	if v, ok := l.cache.Get(itemKey); ok {
		entry := v.(priceEntry)
		return entry.price, entry.found
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	prices, err := l.repo.ListPrices(ctx, []string{itemKey})
	if err != nil {
		l.logger.Warn("Price lookup failed", zap.String("product_id", itemKey), zap.Error(err))
		return decimal.Zero, false
	}

	price, found := prices[itemKey]
	l.store(itemKey, priceEntry{price: price, found: found})
	l.cache.Wait()
	return price, found
}

// Warm loads the prices of ids into the cache with a single query.
func (l *CachedLookup) Warm(ctx context.Context, ids []string) error {
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := l.cache.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	prices, err := l.repo.ListPrices(ctx, missing)
	if err != nil {
		return err
	}
	for _, id := range missing {
		price, found := prices[id]
		l.store(id, priceEntry{price: price, found: found})
	}
	l.cache.Wait()

	l.logger.Debug("Warmed price cache", zap.Int("requested", len(ids)), zap.Int("loaded", len(missing)))
	return nil
}

// Invalidate drops the cached price of id.
func (l *CachedLookup) Invalidate(id string) {
	l.cache.Del(id)
}

func (l *CachedLookup) Close() {
	l.cache.Close()
}

func (l *CachedLookup) store(id string, entry priceEntry) {
	if !l.cache.SetWithTTL(id, entry, 1, l.ttl) {
		l.logger.Debug("Price cache rejected entry", zap.String("product_id", id))
	}
}

// FromProducts builds a static lookup from already loaded products.
func FromProducts(products []models.Product) pricing.PriceMap {
	prices := make(pricing.PriceMap, len(products))
	for _, p := range products {
		prices[p.ID] = p.UnitPrice
	}
	return prices
}
