package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultWriters      = 2
	defaultWriteTimeout = 5 * time.Second
)

var _ Sink = (*Writer)(nil)

// Writer is a small pool of goroutines that persists snapshots off the
// caller's goroutine. Writes are coalesced per key: only the newest pending
// value is kept and at most one write per key is in flight, so the last write
// to complete for a key always carries the newest value handed to Write.
type Writer struct {
	backend Backend
	logger  *zap.Logger
	onError ErrorHandler
	timeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	pending  map[string]string
	ready    []string
	inflight map[string]struct{}
	idle     chan struct{}
	closed   bool

	workers sync.WaitGroup
}

type WriterOption func(*Writer)

// WithErrorHandler registers a callback for writes the backend rejected.
func WithErrorHandler(h ErrorHandler) WriterOption {
	return func(w *Writer) { w.onError = h }
}

// WithWriteTimeout bounds each backend Set call.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewWriter(backend Backend, size int, logger *zap.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultWriters
	}
	w := &Writer{
		backend:  backend,
		logger:   logger,
		timeout:  defaultWriteTimeout,
		pending:  make(map[string]string),
		inflight: make(map[string]struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	for _, opt := range opts {
		opt(w)
	}

	w.workers.Add(size)
	for i := 0; i < size; i++ {
		go w.worker()
	}

	return w
}

// Write queues value as the newest state for key and returns immediately.
func (w *Writer) Write(key, value string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("Dropping state write after shutdown", zap.String("key", key))
		w.reportError(key, ErrClosed)
		return
	}

	_, queued := w.pending[key]
	_, running := w.inflight[key]
	w.pending[key] = value
	if !queued && !running {
		w.ready = append(w.ready, key)
		w.cond.Signal()
	}
	if w.idle == nil {
		w.idle = make(chan struct{})
	}
	w.mu.Unlock()
}

func (w *Writer) worker() {
	defer w.workers.Done()
	for {
		w.mu.Lock()
		for len(w.ready) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.ready) == 0 {
			w.mu.Unlock()
			return
		}
		key := w.ready[0]
		w.ready = w.ready[1:]
		value := w.pending[key]
		delete(w.pending, key)
		w.inflight[key] = struct{}{}
		w.mu.Unlock()

		w.persist(key, value)

		w.mu.Lock()
		delete(w.inflight, key)
		if _, ok := w.pending[key]; ok {
			// a newer value arrived while this one was being written
			w.ready = append(w.ready, key)
			w.cond.Signal()
		}
		w.settleLocked()
		w.mu.Unlock()
	}
}

func (w *Writer) persist(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.backend.Set(ctx, key, value); err != nil {
		w.logger.Error("Failed to persist state", zap.String("key", key), zap.Error(err))
		w.reportError(key, err)
	}
}

func (w *Writer) reportError(key string, err error) {
	if w.onError != nil {
		w.onError(key, err)
	}
}

func (w *Writer) settleLocked() {
	if len(w.pending) == 0 && len(w.inflight) == 0 && w.idle != nil {
		close(w.idle)
		w.idle = nil
	}
}

// Flush waits until every queued write has been attempted.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown flushes pending writes and stops the workers. Writes issued after
// Shutdown are dropped and reported with ErrClosed.
func (w *Writer) Shutdown(ctx context.Context) error {
	err := w.Flush(ctx)

	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
