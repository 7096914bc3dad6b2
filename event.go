package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"goflare.io/storefront/driver"
	"goflare.io/storefront/favorite"
	"goflare.io/storefront/models"
)

const responderQueue = "storefront-responders"

var (
	_ favorite.Confirmer = (*EventManager)(nil)
	_ RemoteCarts        = (*EventManager)(nil)
)

// CartProvider answers remote cart fetches on the serving side.
type CartProvider interface {
	CartFor(ctx context.Context, customerID string) (models.CartSnapshot, error)
}

type CartProviderFunc func(ctx context.Context, customerID string) (models.CartSnapshot, error)

func (f CartProviderFunc) CartFor(ctx context.Context, customerID string) (models.CartSnapshot, error) {
	return f(ctx, customerID)
}

type cartRequest struct {
	RequestID  string `json:"requestId"`
	CustomerID string `json:"customerId"`
}

type cartReply struct {
	RequestID string              `json:"requestId"`
	Items     models.CartSnapshot `json:"items"`
	Error     string              `json:"error,omitempty"`
}

type favoriteRequest struct {
	RequestID string `json:"requestId"`
	ProductID string `json:"productId"`
	Member    bool   `json:"member"`
}

type favoriteReply struct {
	RequestID string `json:"requestId"`
	Member    bool   `json:"member"`
	Error     string `json:"error,omitempty"`
}

// EventManager carries the storefront's request/reply traffic over NATS:
// fetching a remote cart and confirming favorite toggles, plus the
// responders that answer both.
type EventManager struct {
	natsConn *nats.Conn
	logger   *zap.Logger

	cartSubject     string
	favoriteSubject string

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewEventManager(natsConn *nats.Conn, namespace string, logger *zap.Logger) *EventManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventManager{
		natsConn:        natsConn,
		logger:          logger,
		cartSubject:     namespace + ".cart.fetch",
		favoriteSubject: namespace + ".favorite.confirm",
	}
}

// ConnectEventManager dials cfg.NATSURL and returns an EventManager using
// cfg.Namespace for its subjects. The returned CloseFunc drains the
// responders and closes the connection.
func ConnectEventManager(cfg Config, logger *zap.Logger) (*EventManager, CloseFunc, error) {
	if cfg.NATSURL == "" {
		return nil, nil, errors.New("storefront: nats url not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := driver.ConnectNATS(cfg.NATSURL, cfg.Namespace, logger)
	if err != nil {
		return nil, nil, err
	}

	em := NewEventManager(conn, cfg.Namespace, logger)
	return em, func() error {
		err := em.Close()
		conn.Close()
		return err
	}, nil
}

// FetchCart asks the cart owner for customerID's cart.
func (em *EventManager) FetchCart(ctx context.Context, customerID string) (models.CartSnapshot, error) {
	req := cartRequest{RequestID: uuid.NewString(), CustomerID: customerID}
	var reply cartReply
	if err := em.request(ctx, em.cartSubject, req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemoteRejected, reply.Error)
	}
	return reply.Items, nil
}

// ConfirmFavorite asks the favorites owner to apply a membership change.
func (em *EventManager) ConfirmFavorite(ctx context.Context, key string, member bool) (bool, error) {
	req := favoriteRequest{RequestID: uuid.NewString(), ProductID: key, Member: member}
	var reply favoriteReply
	if err := em.request(ctx, em.favoriteSubject, req, &reply); err != nil {
		return false, err
	}
	if reply.Error != "" {
		return false, fmt.Errorf("%w: %s", ErrRemoteRejected, reply.Error)
	}
	return reply.Member, nil
}

func (em *EventManager) request(ctx context.Context, subject string, req, reply any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	msg, err := em.natsConn.RequestWithContext(ctx, subject, data)
	if err != nil {
		em.logger.Warn("NATS request failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if err = json.Unmarshal(msg.Data, reply); err != nil {
		em.logger.Error("Failed to unmarshal reply", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return nil
}

// ServeCarts answers cart fetches from provider on wp's workers.
func (em *EventManager) ServeCarts(wp *WorkerPool, provider CartProvider) error {
	return em.serve(wp, em.cartSubject, func(ctx context.Context, data []byte) []byte {
		return handleCartRequest(ctx, provider, data)
	})
}

// ServeFavoriteConfirmations answers favorite confirmations through confirmer.
func (em *EventManager) ServeFavoriteConfirmations(wp *WorkerPool, confirmer favorite.Confirmer) error {
	return em.serve(wp, em.favoriteSubject, func(ctx context.Context, data []byte) []byte {
		return handleFavoriteRequest(ctx, confirmer, data)
	})
}

func (em *EventManager) serve(wp *WorkerPool, subject string, handle func(context.Context, []byte) []byte) error {
	sub, err := em.natsConn.QueueSubscribe(subject, responderQueue, func(msg *nats.Msg) {
		wp.Submit(Task{
			Name: subject,
			Run: func(ctx context.Context) error {
				return msg.Respond(handle(ctx, msg.Data))
			},
		})
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	em.mu.Lock()
	em.subs = append(em.subs, sub)
	em.mu.Unlock()

	em.logger.Info("Serving requests", zap.String("subject", subject))
	return nil
}

// Close drains every responder subscription.
func (em *EventManager) Close() error {
	em.mu.Lock()
	subs := em.subs
	em.subs = nil
	em.mu.Unlock()

	var errs error
	for _, sub := range subs {
		errs = multierr.Append(errs, sub.Drain())
	}
	return errs
}

func handleCartRequest(ctx context.Context, provider CartProvider, data []byte) []byte {
	var req cartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeReply(cartReply{Error: "malformed request"})
	}

	reply := cartReply{RequestID: req.RequestID}
	items, err := provider.CartFor(ctx, req.CustomerID)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Items = items.Clone()
	}
	return encodeReply(reply)
}

func handleFavoriteRequest(ctx context.Context, confirmer favorite.Confirmer, data []byte) []byte {
	var req favoriteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeReply(favoriteReply{Error: "malformed request"})
	}
	if req.ProductID == "" {
		return encodeReply(favoriteReply{RequestID: req.RequestID, Error: "missing product id"})
	}

	reply := favoriteReply{RequestID: req.RequestID}
	member, err := confirmer.ConfirmFavorite(ctx, req.ProductID, req.Member)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Member = member
	}
	return encodeReply(reply)
}

func encodeReply(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"failed to encode reply"}`)
	}
	return data
}
