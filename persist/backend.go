// Package persist is the persistence port shared by the cart and favorites
// stores. A Backend is a string key-value store; a Sink accepts full-snapshot
// writes without reporting back to the caller.
package persist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/storefront/models/enum"
)

// DefaultNamespace prefixes every slot key unless configured otherwise.
const DefaultNamespace = "storefront"

var (
	ErrClosed      = errors.New("persist: writer closed")
	ErrEmptyKey    = errors.New("persist: empty key")
	ErrUnavailable = errors.New("persist: backend unavailable")
)

// Backend reads and overwrites whole values by key. A missing key is reported
// as ok == false with a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Sink receives encoded snapshots. Write never blocks on the backend and never
// fails from the caller's point of view; failures are reported out of band.
type Sink interface {
	Write(key, value string)
}

// SlotKey builds the storage key for one state slot.
func SlotKey(namespace string, slot enum.Slot) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s:%s", namespace, slot)
}

// ErrorHandler is told about writes the backend rejected.
type ErrorHandler func(key string, err error)

type directSink struct {
	backend Backend
	onError ErrorHandler
	logger  *zap.Logger
}

// Direct returns a Sink that writes synchronously on the caller's goroutine.
func Direct(backend Backend, logger *zap.Logger, onError ErrorHandler) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &directSink{backend: backend, onError: onError, logger: logger}
}

func (d *directSink) Write(key, value string) {
	if err := d.backend.Set(context.Background(), key, value); err != nil {
		d.logger.Error("Failed to persist state", zap.String("key", key), zap.Error(err))
		if d.onError != nil {
			d.onError(key, err)
		}
	}
}

type discard struct{}

// Discard drops every write. Stores seeded from a remote cart use it so local
// edits are never written back.
var Discard interface {
	Backend
	Sink
} = discard{}

func (discard) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (discard) Set(context.Context, string, string) error { return nil }

func (discard) Write(string, string) {}
