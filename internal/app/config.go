package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/stripeshop/internal/domain/money"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Stripe      StripeConfig
	Checkout    CheckoutConfig
	FX          FXConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// StripeConfig carries one secret key per settlement currency plus the
// webhook signing secret. A currency without a key cannot be checked out.
type StripeConfig struct {
	KeyEUR        string `env:"KEY_EUR" flag:"stripe-key-eur" usage:"Stripe secret key for EUR checkouts"`
	KeyUSD        string `env:"KEY_USD" flag:"stripe-key-usd" usage:"Stripe secret key for USD checkouts"`
	WebhookSecret string `env:"WEBHOOK_SECRET" flag:"stripe-webhook-secret" usage:"Stripe webhook signing secret (empty disables verification)"`
	BaseURL       string `env:"BASE_URL" flag:"stripe-base-url" usage:"Override the Stripe API base URL (for testing)"`
}

// CheckoutConfig holds the redirect targets handed to the provider.
type CheckoutConfig struct {
	SuccessURL string `default:"http://localhost:8080/success" env:"SUCCESS_URL" flag:"success-url" usage:"Redirect after successful payment"`
	CancelURL  string `default:"http://localhost:8080/cancel" env:"CANCEL_URL" flag:"cancel-url" usage:"Redirect after cancelled payment"`
}

// FXConfig is the static conversion table. Keys are directed "from-to"
// pairs; a missing direction is a missing rate, never an inversion.
type FXConfig struct {
	Rates map[string]string `default:"eur-usd:1.1,usd-eur:0.9" usage:"Directed conversion rates as from-to:rate pairs"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window (0 disables)"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/stripeshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.RateTable(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// SecretKeys returns the per-currency Stripe keys, omitting currencies
// without one.
func (c *Config) SecretKeys() map[money.Currency]string {
	keys := make(map[money.Currency]string, 2)
	if c.Stripe.KeyEUR != "" {
		keys[money.EUR] = c.Stripe.KeyEUR
	}
	if c.Stripe.KeyUSD != "" {
		keys[money.USD] = c.Stripe.KeyUSD
	}
	return keys
}

// RateTable parses the configured conversion rates into the converter's
// pair table.
func (c *Config) RateTable() (map[money.Pair]decimal.Decimal, error) {
	table := make(map[money.Pair]decimal.Decimal, len(c.FX.Rates))
	for key, value := range c.FX.Rates {
		from, to, ok := strings.Cut(key, "-")
		if !ok {
			return nil, errors.Errorf("malformed rate key %q: want from-to", key)
		}
		fromCur, err := money.ParseCurrency(from)
		if err != nil {
			return nil, errors.Wrapf(err, "rate key %q", key)
		}
		toCur, err := money.ParseCurrency(to)
		if err != nil {
			return nil, errors.Wrapf(err, "rate key %q", key)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "rate value %q for %q", value, key)
		}
		if rate.Sign() <= 0 {
			return nil, errors.Errorf("rate for %q must be positive, got %s", key, rate)
		}
		table[money.Pair{From: fromCur, To: toCur}] = rate
	}
	return table, nil
}
