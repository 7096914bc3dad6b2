// Package cart holds the storefront cart: an ordered collection of line items
// keyed by product, kept in memory and persisted write-through on every
// mutation.
package cart

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/persist"
)

var _ Service = (*Store)(nil)

type Store struct {
	backend persist.Backend
	sink    persist.Sink
	key     string
	logger  *zap.Logger

	mu       sync.Mutex
	items    models.CartSnapshot
	hydrated bool

	subMu       sync.Mutex
	subscribers map[uint64]func(models.CartSnapshot)
	nextSubID   uint64
}

// NewStore returns an empty, not yet hydrated store reading from backend and
// writing full snapshots to sink under key.
func NewStore(backend persist.Backend, sink persist.Sink, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:     backend,
		sink:        sink,
		key:         key,
		logger:      logger.With(zap.String("slot", key)),
		items:       models.NewCartSnapshot(),
		subscribers: make(map[uint64]func(models.CartSnapshot)),
	}
}

// NewDetached returns a store seeded with a cart fetched elsewhere. It counts
// as hydrated and never writes back.
func NewDetached(snapshot models.CartSnapshot, logger *zap.Logger) *Store {
	s := NewStore(persist.Discard, persist.Discard, "detached", logger)
	s.items = sanitize(snapshot)
	s.hydrated = true
	return s
}

// Hydrate loads the persisted cart unless a mutation already did. Missing,
// unreadable and malformed data all yield an empty cart. Later calls return
// the in-memory snapshot without touching the backend.
func (s *Store) Hydrate(ctx context.Context) models.CartSnapshot {
	s.mu.Lock()
	if s.hydrated {
		snapshot := s.items.Clone()
		s.mu.Unlock()
		return snapshot
	}
	s.items = s.load(ctx)
	s.hydrated = true
	snapshot := s.items.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

func (s *Store) load(ctx context.Context) models.CartSnapshot {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("Failed to read cart, starting empty", zap.Error(err))
		return models.NewCartSnapshot()
	}
	if !ok {
		return models.NewCartSnapshot()
	}

	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn("Discarding corrupt cart", zap.Error(err))
		return models.NewCartSnapshot()
	}
	return snapshot
}

func (s *Store) Snapshot() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// Add merges quantity into the line for itemKey, appending a new line when
// the key is not in the cart. Merged quantities saturate at math.MaxInt.
// Non-positive quantities, empty keys and keys that are not valid UTF-8 are
// ignored; use SetQuantity to decrement.
func (s *Store) Add(itemKey string, quantity int) models.CartSnapshot {
	if !models.ValidItemKey(itemKey) || quantity <= 0 {
		s.logger.Debug("Ignoring add", zap.String("item_key", itemKey), zap.Int("quantity", quantity))
		return s.Snapshot()
	}

	return s.mutate(func(items models.CartSnapshot) models.CartSnapshot {
		if i := items.Index(itemKey); i >= 0 {
			items[i].Quantity = addQuantity(items[i].Quantity, quantity)
			return items
		}
		return append(items, models.LineItem{ItemKey: itemKey, Quantity: quantity})
	})
}

// SetQuantity replaces the quantity in place. A quantity of zero or less
// removes the line.
func (s *Store) SetQuantity(itemKey string, quantity int) models.CartSnapshot {
	if !models.ValidItemKey(itemKey) {
		s.logger.Debug("Ignoring quantity update", zap.String("item_key", itemKey))
		return s.Snapshot()
	}
	if quantity <= 0 {
		return s.Remove(itemKey)
	}

	return s.mutate(func(items models.CartSnapshot) models.CartSnapshot {
		if i := items.Index(itemKey); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})
}

func (s *Store) Remove(itemKey string) models.CartSnapshot {
	return s.mutate(func(items models.CartSnapshot) models.CartSnapshot {
		if i := items.Index(itemKey); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	})
}

func (s *Store) Clear() models.CartSnapshot {
	return s.mutate(func(models.CartSnapshot) models.CartSnapshot {
		return models.NewCartSnapshot()
	})
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.TotalQuantity()
}

func (s *Store) Quantity(itemKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Quantity(itemKey)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn to receive the snapshot after every mutation.
func (s *Store) Subscribe(fn func(models.CartSnapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// mutate applies fn to a private copy and swaps it in, so readers never see
// a half-applied change. The new snapshot is persisted and published.
func (s *Store) mutate(fn func(models.CartSnapshot) models.CartSnapshot) models.CartSnapshot {
	s.mu.Lock()
	if !s.hydrated {
		// a write now would overwrite the slot before it was ever read
		s.items = s.load(context.Background())
		s.hydrated = true
	}
	next := fn(s.items.Clone())
	s.items = next
	encoded, err := EncodeSnapshot(next)
	snapshot := next.Clone()
	// the write is queued under the lock so sink order matches mutation order
	if err != nil {
		s.logger.Error("Failed to encode cart", zap.Error(err))
	} else {
		s.sink.Write(s.key, encoded)
	}
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

func (s *Store) notify(snapshot models.CartSnapshot) {
	s.subMu.Lock()
	fns := make([]func(models.CartSnapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot.Clone())
	}
}

// sanitize drops lines a Store could never hold and merges repeated keys.
func sanitize(snapshot models.CartSnapshot) models.CartSnapshot {
	out := models.NewCartSnapshot()
	for _, item := range snapshot {
		if !models.ValidItemKey(item.ItemKey) || item.Quantity <= 0 {
			continue
		}
		if i := out.Index(item.ItemKey); i >= 0 {
			out[i].Quantity = addQuantity(out[i].Quantity, item.Quantity)
			continue
		}
		out = append(out, item)
	}
	return out
}

// addQuantity adds two positive quantities, saturating at math.MaxInt.
func addQuantity(current, delta int) int {
	if current > math.MaxInt-delta {
		return math.MaxInt
	}
	return current + delta
}
