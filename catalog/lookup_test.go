package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap/zaptest"

	"goflare.io/storefront/catalog"
	"goflare.io/storefront/models"
	"goflare.io/storefront/pricing"
)

// countingRepository serves prices from a map and counts ListPrices calls.
type countingRepository struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  int
	err    error
}

func (r *countingRepository) GetProduct(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	price, ok := r.prices[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &models.Product{ID: id, UnitPrice: price}, nil
}

func (r *countingRepository) ListPrices(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		if price, ok := r.prices[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

func (r *countingRepository) UpsertProduct(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[product.ID] = product.UnitPrice
	return nil
}

func (r *countingRepository) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newLookup(t *testing.T, repo catalog.Repository) *catalog.CachedLookup {
	t.Helper()
	lookup, err := catalog.NewCachedLookup(repo, 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new lookup: %v", err)
	}
	t.Cleanup(lookup.Close)
	return lookup
}

func TestCachedLookupHitsRepositoryOnce(t *testing.T) {
	repo := &countingRepository{prices: map[string]decimal.Decimal{"p1": decimal.RequireFromString("12.50")}}
	lookup := newLookup(t, repo)

	for i := 0; i < 3; i++ {
		price, ok := lookup.Price("p1")
		if !ok || !price.Equal(decimal.RequireFromString("12.5")) {
			t.Fatalf("unexpected price %s (found %v)", price, ok)
		}
	}
	if got := repo.callCount(); got != 1 {
		t.Errorf("expected one repository call, got %d", got)
	}
}

func TestCachedLookupRemembersMissingProducts(t *testing.T) {
	repo := &countingRepository{prices: map[string]decimal.Decimal{}}
	lookup := newLookup(t, repo)

	if _, ok := lookup.Price("gone"); ok {
		t.Fatal("expected unknown product to be missing")
	}
	if _, ok := lookup.Price("gone"); ok {
		t.Fatal("expected unknown product to stay missing")
	}
	if got := repo.callCount(); got != 1 {
		t.Errorf("expected one repository call, got %d", got)
	}
}

func TestCachedLookupDoesNotCacheFailures(t *testing.T) {
	repo := &countingRepository{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(3)}, err: errors.New("db down")}
	lookup := newLookup(t, repo)

	if _, ok := lookup.Price("p1"); ok {
		t.Fatal("expected failed lookup to report missing")
	}

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	if price, ok := lookup.Price("p1"); !ok || !price.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected recovered price 3, got %s (found %v)", price, ok)
	}
}

func TestWarmAndInvalidate(t *testing.T) {
	repo := &countingRepository{prices: map[string]decimal.Decimal{
		"p1": decimal.NewFromInt(10),
		"p2": decimal.NewFromInt(20),
	}}
	lookup := newLookup(t, repo)

	if err := lookup.Warm(context.Background(), []string{"p1", "p2", "p3"}); err != nil {
		t.Fatalf("warm: %v", err)
	}
	summary := pricing.ComputeSummary(models.CartSnapshot{
		{ItemKey: "p1", Quantity: 1},
		{ItemKey: "p2", Quantity: 2},
		{ItemKey: "p3", Quantity: 1},
	}, lookup, pricing.Free(), stripe.CurrencyUSD)

	if !summary.Subtotal.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected subtotal 50, got %s", summary.Subtotal)
	}
	if got := repo.callCount(); got != 1 {
		t.Errorf("expected warm to be the only repository call, got %d", got)
	}

	_ = repo.UpsertProduct(context.Background(), &models.Product{ID: "p1", UnitPrice: decimal.NewFromInt(11)})
	lookup.Invalidate("p1")
	if price, _ := lookup.Price("p1"); !price.Equal(decimal.NewFromInt(11)) {
		t.Errorf("expected refreshed price 11, got %s", price)
	}
}

func TestFromProducts(t *testing.T) {
	prices := catalog.FromProducts([]models.Product{
		{ID: "p1", UnitPrice: decimal.NewFromInt(5)},
		{ID: "p2", UnitPrice: decimal.RequireFromString("0.99")},
	})

	if price, ok := prices.Price("p2"); !ok || !price.Equal(decimal.RequireFromString("0.99")) {
		t.Errorf("unexpected price for p2: %s", price)
	}
	if _, ok := prices.Price("p3"); ok {
		t.Error("expected p3 to be missing")
	}
}
