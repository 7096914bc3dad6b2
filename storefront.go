// Package storefront keeps a shopper's cart and favorites in memory, persists
// them write-through to a storage backend and derives the cart's pricing
// summary.
package storefront

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"goflare.io/storefront/cart"
	"goflare.io/storefront/favorite"
	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
	"goflare.io/storefront/persist"
	"goflare.io/storefront/pricing"
)

var ErrNoRemoteCarts = errors.New("storefront: remote carts are not configured")

// RemoteCarts fetches carts owned by another system.
type RemoteCarts interface {
	FetchCart(ctx context.Context, customerID string) (models.CartSnapshot, error)
}

type Service interface {
	Cart() models.CartSnapshot
	AddToCart(itemKey string, quantity int) models.CartSnapshot
	UpdateQuantity(itemKey string, quantity int) models.CartSnapshot
	RemoveFromCart(itemKey string) models.CartSnapshot
	ClearCart() models.CartSnapshot
	CartItemCount() int
	Summary() models.PricingResult
	SubscribeCart(fn func(models.CartSnapshot)) (unsubscribe func())

	ToggleFavorite(itemKey string) bool
	IsFavorite(itemKey string) bool
	Favorites() models.FavoriteSet
	SubscribeFavorites(fn func(models.FavoriteSet)) (unsubscribe func())

	OpenRemoteCart(ctx context.Context, customerID string) (*cart.Store, error)

	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

type service struct {
	cart      *cart.Store
	favorites *favorite.Set
	writer    *persist.Writer

	lookup   pricing.PriceLookup
	shipping pricing.ShippingPolicy
	cfg      Config

	remote RemoteCarts
	logger *zap.Logger
}

type options struct {
	confirmer favorite.Confirmer
	remote    RemoteCarts
	shipping  pricing.ShippingPolicy
	onError   persist.ErrorHandler
}

type Option func(*options)

// WithConfirmer makes favorite toggles optimistic, confirmed through c.
func WithConfirmer(c favorite.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

func WithRemoteCarts(r RemoteCarts) Option {
	return func(o *options) { o.remote = r }
}

// WithShippingPolicy replaces the flat fee from Config.ShippingFee.
func WithShippingPolicy(p pricing.ShippingPolicy) Option {
	return func(o *options) { o.shipping = p }
}

// WithWriteErrorHandler observes state writes the backend rejected.
func WithWriteErrorHandler(h persist.ErrorHandler) Option {
	return func(o *options) { o.onError = h }
}

// NewService builds the cart and favorites over backend and hydrates both.
// A nil lookup prices every item at zero.
func NewService(ctx context.Context, cfg Config, backend persist.Backend, lookup pricing.PriceLookup, logger *zap.Logger, opts ...Option) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{shipping: pricing.FlatRate(cfg.ShippingFee)}
	for _, opt := range opts {
		opt(&o)
	}

	writerOpts := []persist.WriterOption{}
	if o.onError != nil {
		writerOpts = append(writerOpts, persist.WithErrorHandler(o.onError))
	}
	writer := persist.NewWriter(backend, cfg.WriteWorkers, logger, writerOpts...)

	setOpts := []favorite.Option{favorite.WithConfirmTimeout(cfg.ConfirmTimeout)}
	if o.confirmer != nil {
		setOpts = append(setOpts, favorite.WithConfirmer(o.confirmer))
	}

	s := &service{
		cart:      cart.NewStore(backend, writer, persist.SlotKey(cfg.Namespace, enum.SlotCart), logger),
		favorites: favorite.NewSet(backend, writer, persist.SlotKey(cfg.Namespace, enum.SlotFavorites), logger, setOpts...),
		writer:    writer,
		lookup:    lookup,
		shipping:  o.shipping,
		cfg:       cfg,
		remote:    o.remote,
		logger:    logger,
	}

	items := s.cart.Hydrate(ctx)
	favorites := s.favorites.Hydrate(ctx)
	logger.Info("Storefront state hydrated",
		zap.String("namespace", cfg.Namespace),
		zap.Int("cart_lines", len(items)),
		zap.Int("favorites", len(favorites)))

	return s, nil
}

func (s *service) Cart() models.CartSnapshot {
	return s.cart.Snapshot()
}

func (s *service) AddToCart(itemKey string, quantity int) models.CartSnapshot {
	return s.cart.Add(itemKey, quantity)
}

func (s *service) UpdateQuantity(itemKey string, quantity int) models.CartSnapshot {
	return s.cart.SetQuantity(itemKey, quantity)
}

func (s *service) RemoveFromCart(itemKey string) models.CartSnapshot {
	return s.cart.Remove(itemKey)
}

func (s *service) ClearCart() models.CartSnapshot {
	return s.cart.Clear()
}

func (s *service) CartItemCount() int {
	return s.cart.TotalQuantity()
}

func (s *service) Summary() models.PricingResult {
	return pricing.ComputeSummary(s.cart.Snapshot(), s.lookup, s.shipping, s.cfg.Currency)
}

func (s *service) SubscribeCart(fn func(models.CartSnapshot)) func() {
	return s.cart.Subscribe(fn)
}

func (s *service) ToggleFavorite(itemKey string) bool {
	return s.favorites.Toggle(itemKey)
}

func (s *service) IsFavorite(itemKey string) bool {
	return s.favorites.Contains(itemKey)
}

func (s *service) Favorites() models.FavoriteSet {
	return s.favorites.Snapshot()
}

func (s *service) SubscribeFavorites(fn func(models.FavoriteSet)) func() {
	return s.favorites.Subscribe(fn)
}

// OpenRemoteCart fetches customerID's cart into a detached store. Changes to
// the returned store are never written back.
func (s *service) OpenRemoteCart(ctx context.Context, customerID string) (*cart.Store, error) {
	if s.remote == nil {
		return nil, ErrNoRemoteCarts
	}

	items, err := s.remote.FetchCart(ctx, customerID)
	if err != nil {
		s.logger.Error("Failed to fetch remote cart", zap.String("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch cart for %s: %w", customerID, err)
	}

	return cart.NewDetached(items, s.logger), nil
}

// Flush waits until every state change so far has reached the backend.
func (s *service) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Close waits for outstanding favorite confirmations, then flushes and stops
// the writer.
func (s *service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.favorites.Wait()
		close(done)
	}()

	var errs error
	select {
	case <-done:
	case <-ctx.Done():
		errs = multierr.Append(errs, fmt.Errorf("waiting for favorite confirmations: %w", ctx.Err()))
	}

	return multierr.Append(errs, s.writer.Shutdown(ctx))
}
