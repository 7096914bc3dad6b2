// Package favorite keeps the shopper's favorited products: a persisted set
// with optimistic toggles that may be confirmed by a remote service.
package favorite

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/storefront/models"
	"goflare.io/storefront/models/enum"
	"goflare.io/storefront/persist"
)

const defaultConfirmTimeout = 5 * time.Second

// Confirmer asks the system of record to apply a membership change and
// returns the membership it ended up with.
type Confirmer interface {
	ConfirmFavorite(ctx context.Context, key string, member bool) (bool, error)
}

type ConfirmerFunc func(ctx context.Context, key string, member bool) (bool, error)

func (f ConfirmerFunc) ConfirmFavorite(ctx context.Context, key string, member bool) (bool, error) {
	return f(ctx, key, member)
}

// Confirmation is the answer to one toggle. Seq is the sequence number the
// toggle was issued with. When Err is set, Member is the membership that was
// requested.
type Confirmation struct {
	Key    string
	Seq    uint64
	Member bool
	Err    error
}

type OutcomeHook func(c Confirmation, outcome enum.ConfirmationOutcome)

type Set struct {
	backend persist.Backend
	sink    persist.Sink
	key     string
	logger  *zap.Logger

	confirmer Confirmer
	timeout   time.Duration
	onOutcome OutcomeHook

	mu       sync.Mutex
	members  models.FavoriteSet
	seqs     map[string]uint64
	hydrated bool

	inflight sync.WaitGroup

	subMu       sync.Mutex
	subscribers map[uint64]func(models.FavoriteSet)
	nextSubID   uint64
}

type Option func(*Set)

func WithConfirmer(c Confirmer) Option {
	return func(s *Set) { s.confirmer = c }
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Set) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithOutcomeHook observes how every confirmation was handled.
func WithOutcomeHook(h OutcomeHook) Option {
	return func(s *Set) { s.onOutcome = h }
}

func NewSet(backend persist.Backend, sink persist.Sink, key string, logger *zap.Logger, opts ...Option) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Set{
		backend:     backend,
		sink:        sink,
		key:         key,
		logger:      logger.With(zap.String("slot", key)),
		timeout:     defaultConfirmTimeout,
		members:     models.NewFavoriteSet(),
		seqs:        make(map[string]uint64),
		subscribers: make(map[uint64]func(models.FavoriteSet)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads the persisted set once per Set lifetime; a Toggle before
// Hydrate loads it first. Missing, unreadable or malformed data yields an
// empty set.
func (s *Set) Hydrate(ctx context.Context) models.FavoriteSet {
	s.mu.Lock()
	if s.hydrated {
		snapshot := s.members.Clone()
		s.mu.Unlock()
		return snapshot
	}
	s.members = s.load(ctx)
	s.hydrated = true
	snapshot := s.members.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

func (s *Set) load(ctx context.Context) models.FavoriteSet {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("Failed to read favorites, starting empty", zap.Error(err))
		return models.NewFavoriteSet()
	}
	if !ok {
		return models.NewFavoriteSet()
	}

	set, err := DecodeSet(data)
	if err != nil {
		s.logger.Warn("Discarding corrupt favorites", zap.Error(err))
		return models.NewFavoriteSet()
	}
	return set
}

func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members.Contains(key)
}

func (s *Set) Snapshot() models.FavoriteSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members.Clone()
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Seq returns the highest sequence number issued for key.
func (s *Set) Seq(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[key]
}

// Toggle flips membership of key and returns the new state. With a
// Confirmer configured the flip is optimistic and a confirmation is issued
// in the background.
func (s *Set) Toggle(key string) bool {
	if !models.ValidItemKey(key) {
		s.logger.Debug("Ignoring toggle", zap.String("key", key))
		return false
	}

	s.mu.Lock()
	s.ensureHydratedLocked()
	member := !s.members.Contains(key)
	s.setLocked(key, member)
	s.seqs[key]++
	seq := s.seqs[key]
	snapshot := s.members.Clone()
	s.mu.Unlock()

	s.notify(snapshot)

	if s.confirmer != nil {
		s.inflight.Add(1)
		go s.confirm(key, seq, member)
	}
	return member
}

func (s *Set) confirm(key string, seq uint64, member bool) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	confirmed, err := s.confirmer.ConfirmFavorite(ctx, key, member)
	if err != nil {
		confirmed = member
	}
	s.ApplyConfirmation(Confirmation{Key: key, Seq: seq, Member: confirmed, Err: err})
}

// ApplyConfirmation applies c only when it answers the latest toggle of its
// key; answers to superseded toggles are dropped. A failed confirmation of
// the latest toggle reverts that toggle.
func (s *Set) ApplyConfirmation(c Confirmation) enum.ConfirmationOutcome {
	s.mu.Lock()
	current := s.seqs[c.Key]
	// sequence numbers start at 1, so 0 never answers an issued toggle
	if current == 0 || c.Seq != current {
		s.mu.Unlock()
		s.logger.Debug("Dropping stale favorite confirmation",
			zap.String("key", c.Key),
			zap.Uint64("seq", c.Seq),
			zap.Uint64("current_seq", current))
		s.report(c, enum.ConfirmationStale)
		return enum.ConfirmationStale
	}

	member, outcome := c.Member, enum.ConfirmationApplied
	if c.Err != nil {
		member, outcome = !c.Member, enum.ConfirmationReverted
		s.logger.Warn("Favorite confirmation failed, reverting",
			zap.String("key", c.Key),
			zap.Uint64("seq", c.Seq),
			zap.Error(c.Err))
	}

	changed := s.members.Contains(c.Key) != member
	if changed {
		s.setLocked(c.Key, member)
	}
	snapshot := s.members.Clone()
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
	s.report(c, outcome)
	return outcome
}

// Wait blocks until every confirmation issued so far has been handled.
func (s *Set) Wait() {
	s.inflight.Wait()
}

func (s *Set) Subscribe(fn func(models.FavoriteSet)) (unsubscribe func()) {
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

func (s *Set) ensureHydratedLocked() {
	if !s.hydrated {
		s.members = s.load(context.Background())
		s.hydrated = true
	}
}

// setLocked updates membership and queues the full set for persistence.
func (s *Set) setLocked(key string, member bool) {
	if member {
		s.members[key] = struct{}{}
	} else {
		delete(s.members, key)
	}

	encoded, err := EncodeSet(s.members)
	if err != nil {
		s.logger.Error("Failed to encode favorites", zap.Error(err))
		return
	}
	s.sink.Write(s.key, encoded)
}

func (s *Set) report(c Confirmation, outcome enum.ConfirmationOutcome) {
	if s.onOutcome != nil {
		s.onOutcome(c, outcome)
	}
}

func (s *Set) notify(snapshot models.FavoriteSet) {
	s.subMu.Lock()
	fns := make([]func(models.FavoriteSet), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot.Clone())
	}
}
