package storefront_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap/zaptest"

	"goflare.io/storefront"
	"goflare.io/storefront/persist"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := storefront.DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestEmptyBackendMeansMemory(t *testing.T) {
	cfg := storefront.DefaultConfig()
	cfg.Backend = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected empty backend to validate, got %v", err)
	}
	backend, closeFn, err := storefront.OpenBackend(testCtx(t), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if _, ok := backend.(*persist.MemoryBackend); !ok {
		t.Errorf("expected a memory backend, got %T", backend)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_NAMESPACE", "shop-eu")
	t.Setenv("STOREFRONT_CURRENCY", "EUR")
	t.Setenv("STOREFRONT_SHIPPING_FEE", "4.90")
	t.Setenv("STOREFRONT_BACKEND", "file")
	t.Setenv("STOREFRONT_STATE_DIR", t.TempDir())
	t.Setenv("STOREFRONT_WRITE_WORKERS", "3")
	t.Setenv("STOREFRONT_CONFIRM_TIMEOUT", "750ms")

	cfg, err := storefront.ConfigFromEnv()
	if err != nil {
		t.Fatalf("config from env: %v", err)
	}

	if cfg.Namespace != "shop-eu" || cfg.Currency != stripe.CurrencyEUR || cfg.Backend != storefront.BackendFile {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.ShippingFee.Equal(decimal.RequireFromString("4.9")) {
		t.Errorf("unexpected shipping fee %s", cfg.ShippingFee)
	}
	if cfg.WriteWorkers != 3 || cfg.ConfirmTimeout != 750*time.Millisecond {
		t.Errorf("unexpected worker settings %+v", cfg)
	}
}

func TestConfigFromEnvReportsEveryBadValue(t *testing.T) {
	t.Setenv("STOREFRONT_SHIPPING_FEE", "free")
	t.Setenv("STOREFRONT_WRITE_WORKERS", "many")

	_, err := storefront.ConfigFromEnv()
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, name := range []string{"STOREFRONT_SHIPPING_FEE", "STOREFRONT_WRITE_WORKERS"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected error to mention %s, got %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*storefront.Config)
	}{
		{"negative shipping fee", func(c *storefront.Config) { c.ShippingFee = decimal.NewFromInt(-1) }},
		{"no workers", func(c *storefront.Config) { c.WriteWorkers = 0 }},
		{"no confirm timeout", func(c *storefront.Config) { c.ConfirmTimeout = 0 }},
		{"redis without address", func(c *storefront.Config) { c.Backend = storefront.BackendRedis }},
		{"postgres without dsn", func(c *storefront.Config) { c.Backend = storefront.BackendPostgres }},
		{"file without dir", func(c *storefront.Config) { c.Backend, c.StateDir = storefront.BackendFile, "" }},
		{"empty currency", func(c *storefront.Config) { c.Currency = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := storefront.DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("unknown backend", func(t *testing.T) {
		cfg := storefront.DefaultConfig()
		cfg.Backend = "etcd"
		if err := cfg.Validate(); !errors.Is(err, storefront.ErrUnknownBackend) {
			t.Errorf("expected ErrUnknownBackend, got %v", err)
		}
	})
}

func TestOpenBackend(t *testing.T) {
	ctx := testCtx(t)
	logger := zaptest.NewLogger(t)

	t.Run("file", func(t *testing.T) {
		cfg := storefront.DefaultConfig()
		cfg.Backend, cfg.StateDir = storefront.BackendFile, t.TempDir()

		backend, closeFn, err := storefront.OpenBackend(ctx, cfg, logger)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer closeFn()

		if _, ok := backend.(*persist.FileBackend); !ok {
			t.Errorf("expected a file backend, got %T", backend)
		}
	})

	t.Run("memory", func(t *testing.T) {
		backend, closeFn, err := storefront.OpenBackend(ctx, storefront.DefaultConfig(), logger)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer closeFn()

		if _, ok := backend.(*persist.MemoryBackend); !ok {
			t.Errorf("expected a memory backend, got %T", backend)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := storefront.DefaultConfig()
		cfg.Backend = "etcd"
		if _, _, err := storefront.OpenBackend(ctx, cfg, logger); !errors.Is(err, storefront.ErrUnknownBackend) {
			t.Errorf("expected ErrUnknownBackend, got %v", err)
		}
	})
}
