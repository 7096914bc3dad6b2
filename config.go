package storefront

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/multierr"

	"goflare.io/storefront/persist"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const (
	defaultWriteWorkers   = 2
	defaultConfirmTimeout = 5 * time.Second
	defaultStateDir       = ".storefront"
)

type Config struct {
	// Namespace prefixes every storage key and NATS subject.
	Namespace   string
	Currency    stripe.Currency
	ShippingFee decimal.Decimal

	// Backend is one of the Backend* names; empty means memory.
	Backend   string
	DSN       string
	RedisAddr string
	StateDir  string
	NATSURL   string

	WriteWorkers   int
	ConfirmTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:      persist.DefaultNamespace,
		Currency:       stripe.CurrencyIDR,
		ShippingFee:    decimal.NewFromInt(15000),
		Backend:        BackendMemory,
		StateDir:       defaultStateDir,
		WriteWorkers:   defaultWriteWorkers,
		ConfirmTimeout: defaultConfirmTimeout,
	}
}

// ConfigFromEnv starts from DefaultConfig and overrides every field whose
// STOREFRONT_* variable is set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs error

	if v := os.Getenv("STOREFRONT_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("STOREFRONT_CURRENCY"); v != "" {
		cfg.Currency = stripe.Currency(strings.ToLower(v))
	}
	if v := os.Getenv("STOREFRONT_SHIPPING_FEE"); v != "" {
		fee, err := decimal.NewFromString(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("STOREFRONT_SHIPPING_FEE: %w", err))
		} else {
			cfg.ShippingFee = fee
		}
	}
	if v := os.Getenv("STOREFRONT_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("STOREFRONT_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("STOREFRONT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("STOREFRONT_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("STOREFRONT_NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("STOREFRONT_WRITE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("STOREFRONT_WRITE_WORKERS: %w", err))
		} else {
			cfg.WriteWorkers = n
		}
	}
	if v := os.Getenv("STOREFRONT_CONFIRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("STOREFRONT_CONFIRM_TIMEOUT: %w", err))
		} else {
			cfg.ConfirmTimeout = d
		}
	}

	if errs != nil {
		return cfg, errs
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs error

	if c.Namespace == "" {
		errs = multierr.Append(errs, errors.New("namespace must not be empty"))
	}
	if c.Currency == "" {
		errs = multierr.Append(errs, errors.New("currency must not be empty"))
	}
	if c.ShippingFee.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("shipping fee %s must not be negative", c.ShippingFee))
	}
	if c.WriteWorkers <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("write workers %d must be positive", c.WriteWorkers))
	}
	if c.ConfirmTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("confirm timeout %s must be positive", c.ConfirmTimeout))
	}

	switch c.Backend {
	case BackendMemory, "":
	case BackendFile:
		if c.StateDir == "" {
			errs = multierr.Append(errs, errors.New("file backend needs a state dir"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = multierr.Append(errs, errors.New("redis backend needs an address"))
		}
	case BackendPostgres:
		if c.DSN == "" {
			errs = multierr.Append(errs, errors.New("postgres backend needs a dsn"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend))
	}

	return errs
}
