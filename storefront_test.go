package storefront_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"goflare.io/storefront"
	"goflare.io/storefront/models"
	"goflare.io/storefront/persist"
	"goflare.io/storefront/pricing"
)

var prices = pricing.PriceMap{
	"p1": decimal.NewFromInt(125000),
	"p2": decimal.NewFromInt(49900),
}

type fakeRemote struct {
	items models.CartSnapshot
	err   error
}

func (f fakeRemote) FetchCart(context.Context, string) (models.CartSnapshot, error) {
	return f.items, f.err
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newService(t *testing.T, backend persist.Backend, opts ...storefront.Option) storefront.Service {
	t.Helper()
	svc, err := storefront.NewService(testCtx(t), storefront.DefaultConfig(), backend, prices, zaptest.NewLogger(t), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCartIsPersistedAndRestored(t *testing.T) {
	ctx := testCtx(t)
	backend := persist.NewMemoryBackend()
	svc := newService(t, backend)

	svc.AddToCart("p1", 1)
	svc.AddToCart("p2", 1)
	svc.AddToCart("p1", 1)
	svc.UpdateQuantity("p2", 3)
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	stored, ok, _ := backend.Get(ctx, "storefront:cart")
	want := `[{"productId":"p1","quantity":2},{"productId":"p2","quantity":3}]`
	if !ok || stored != want {
		t.Errorf("unexpected stored cart %q", stored)
	}

	reopened := newService(t, backend)
	defer reopened.Close(ctx)
	if reopened.CartItemCount() != 5 {
		t.Errorf("expected 5 items after restore, got %d", reopened.CartItemCount())
	}
}

func TestSummary(t *testing.T) {
	svc := newService(t, persist.NewMemoryBackend())
	defer svc.Close(testCtx(t))

	empty := svc.Summary()
	if !empty.Total.IsZero() || !empty.ShippingFee.IsZero() {
		t.Errorf("expected zero summary for empty cart, got %+v", empty)
	}

	svc.AddToCart("p1", 2)
	svc.AddToCart("unknown", 1)
	got := svc.Summary()

	if !got.Subtotal.Equal(decimal.NewFromInt(250000)) {
		t.Errorf("unexpected subtotal %s", got.Subtotal)
	}
	if !got.ShippingFee.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("unexpected shipping fee %s", got.ShippingFee)
	}
	if !got.Total.Equal(decimal.NewFromInt(265000)) {
		t.Errorf("unexpected total %s", got.Total)
	}
	if got.Currency != storefront.DefaultConfig().Currency {
		t.Errorf("unexpected currency %s", got.Currency)
	}
}

func TestShippingPolicyOption(t *testing.T) {
	svc := newService(t, persist.NewMemoryBackend(), storefront.WithShippingPolicy(pricing.Free()))
	defer svc.Close(testCtx(t))

	svc.AddToCart("p2", 1)
	if fee := svc.Summary().ShippingFee; !fee.IsZero() {
		t.Errorf("expected free shipping, got %s", fee)
	}
}

func TestFavoritesArePersisted(t *testing.T) {
	ctx := testCtx(t)
	backend := persist.NewMemoryBackend()
	svc := newService(t, backend)

	if !svc.ToggleFavorite("p2") {
		t.Error("expected p2 to become a favorite")
	}
	svc.ToggleFavorite("p1")
	svc.ToggleFavorite("p1")
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	stored, _, _ := backend.Get(ctx, "storefront:favorites")
	if stored != `["p2"]` {
		t.Errorf("unexpected stored favorites %q", stored)
	}
	if !svc.IsFavorite("p2") || svc.IsFavorite("p1") {
		t.Errorf("unexpected favorites %v", svc.Favorites().Keys())
	}
	_ = svc.Close(ctx)
}

func TestConfirmedFavorites(t *testing.T) {
	ctx := testCtx(t)
	confirmer := &recordingConfirmer{}
	svc := newService(t, persist.NewMemoryBackend(), storefront.WithConfirmer(confirmer))

	svc.ToggleFavorite("p1")
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !svc.IsFavorite("p1") {
		t.Error("expected confirmed favorite to stay")
	}
	if diff := cmp.Diff([]string{"p1"}, confirmer.keys()); diff != "" {
		t.Errorf("unexpected confirmations (-want +got):\n%s", diff)
	}
}

type recordingConfirmer struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingConfirmer) ConfirmFavorite(_ context.Context, key string, member bool) (bool, error) {
	r.mu.Lock()
	r.seen = append(r.seen, key)
	r.mu.Unlock()
	return member, nil
}

func (r *recordingConfirmer) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestSubscriptions(t *testing.T) {
	svc := newService(t, persist.NewMemoryBackend())
	defer svc.Close(testCtx(t))

	var counts []int
	unsubscribe := svc.SubscribeCart(func(s models.CartSnapshot) {
		counts = append(counts, s.TotalQuantity())
	})
	var favorites int
	svc.SubscribeFavorites(func(models.FavoriteSet) { favorites++ })

	svc.AddToCart("p1", 2)
	svc.RemoveFromCart("p1")
	unsubscribe()
	svc.AddToCart("p2", 1)
	svc.ToggleFavorite("p2")

	if diff := cmp.Diff([]int{2, 0}, counts); diff != "" {
		t.Errorf("unexpected cart notifications (-want +got):\n%s", diff)
	}
	if favorites != 1 {
		t.Errorf("expected one favorites notification, got %d", favorites)
	}
}

func TestOpenRemoteCart(t *testing.T) {
	ctx := testCtx(t)

	t.Run("detached from storage", func(t *testing.T) {
		backend := persist.NewMemoryBackend()
		remote := fakeRemote{items: models.CartSnapshot{{ItemKey: "p9", Quantity: 2}}}
		svc := newService(t, backend, storefront.WithRemoteCarts(remote))

		store, err := svc.OpenRemoteCart(ctx, "cus_123")
		if err != nil {
			t.Fatalf("open remote cart: %v", err)
		}
		store.Add("p9", 1)
		if err = svc.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}

		if store.Quantity("p9") != 3 {
			t.Errorf("expected local quantity 3, got %d", store.Quantity("p9"))
		}
		if _, ok, _ := backend.Get(ctx, "storefront:cart"); ok {
			t.Error("remote cart was written to local storage")
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		boom := errors.New("timeout")
		svc := newService(t, persist.NewMemoryBackend(), storefront.WithRemoteCarts(fakeRemote{err: boom}))
		defer svc.Close(ctx)

		if _, err := svc.OpenRemoteCart(ctx, "cus_123"); !errors.Is(err, boom) {
			t.Errorf("expected wrapped fetch error, got %v", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		svc := newService(t, persist.NewMemoryBackend())
		defer svc.Close(ctx)

		if _, err := svc.OpenRemoteCart(ctx, "cus_123"); !errors.Is(err, storefront.ErrNoRemoteCarts) {
			t.Errorf("expected ErrNoRemoteCarts, got %v", err)
		}
	})
}

func TestWritesAfterCloseAreReported(t *testing.T) {
	ctx := testCtx(t)
	var mu sync.Mutex
	var reported []error
	svc := newService(t, persist.NewMemoryBackend(), storefront.WithWriteErrorHandler(func(_ string, err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := svc.AddToCart("p1", 1)

	if got.TotalQuantity() != 1 {
		t.Errorf("expected in-memory state to change, got %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || !errors.Is(reported[0], persist.ErrClosed) {
		t.Errorf("expected ErrClosed to be reported, got %v", reported)
	}
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	cfg := storefront.DefaultConfig()
	cfg.Namespace = ""

	if _, err := storefront.NewService(testCtx(t), cfg, persist.NewMemoryBackend(), nil, zaptest.NewLogger(t)); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}

func TestConnectEventManagerNeedsURL(t *testing.T) {
	if _, _, err := storefront.ConnectEventManager(storefront.DefaultConfig(), zaptest.NewLogger(t)); err == nil {
		t.Error("expected missing NATS url to be rejected")
	}
}
