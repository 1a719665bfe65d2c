package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"paygate/internal/payments"
	"paygate/internal/ratelimiter"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	Env         string
	ExternalURL string
	PaymentsEnv string // sandbox | live

	DB          DBConfig
	Auth        AuthConfig
	RateLimiter ratelimiter.Config
	AllowedIPs  []string

	OutboundTimeout time.Duration
	Callback        CallbackConfig
	Sweep           SweepConfig
	ReferenceSalt   string

	Providers payments.ProvidersConfig
}

type DBConfig struct {
	Addr        string
	MaxConns    int
	MaxIdleTime string
}

type AuthConfig struct {
	Token     string
	TokenHash string
	Basic     BasicConfig
}

type BasicConfig struct {
	User string
	Pass string
}

type CallbackConfig struct {
	URL           string
	SigningSecret string
	MaxAttempts   int
	QueueSize     int
}

type SweepConfig struct {
	Interval   time.Duration // zero disables the sweeper
	StaleAfter time.Duration
	BatchSize  int
}

// Load reads .env when present and builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the configuration from lookup, which has the signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Addr:        e.str("ADDR", ":8080"),
		Env:         e.str("ENV", "development"),
		ExternalURL: e.str("EXTERNAL_URL", "localhost:8080"),
		PaymentsEnv: strings.ToLower(e.str("PAYMENTS_ENV", "sandbox")),
		DB: DBConfig{
			Addr:        e.str("DB_ADDR", ""),
			MaxConns:    e.int("DB_MAX_CONNS", 30),
			MaxIdleTime: e.str("DB_MAX_IDLE_TIME", "15m"),
		},
		Auth: AuthConfig{
			Token:     e.str("API_TOKEN", ""),
			TokenHash: e.str("API_TOKEN_HASH", ""),
			Basic: BasicConfig{
				User: e.str("AUTH_BASIC_USER", ""),
				Pass: e.str("AUTH_BASIC_PASS", ""),
			},
		},
		RateLimiter: ratelimiter.Config{
			RequestsPerTimeFrame: e.int("RATELIMITER_REQUESTS_COUNT", 200),
			TimeFrame:            e.duration("RATELIMITER_TIME_FRAME", 5*time.Second),
			Enabled:              e.bool("RATE_LIMITER_ENABLED", false),
		},
		AllowedIPs:      e.list("ALLOWED_IPS"),
		OutboundTimeout: e.duration("OUTBOUND_TIMEOUT", payments.DefaultTimeout),
		Callback: CallbackConfig{
			URL:           e.str("MERCHANT_CALLBACK_URL", ""),
			SigningSecret: e.str("CALLBACK_SIGNING_SECRET", ""),
			MaxAttempts:   e.int("CALLBACK_MAX_ATTEMPTS", 3),
			QueueSize:     e.int("CALLBACK_QUEUE_SIZE", 256),
		},
		Sweep: SweepConfig{
			Interval:   e.duration("SWEEP_INTERVAL", 0),
			StaleAfter: e.duration("SWEEP_STALE_AFTER", 10*time.Minute),
			BatchSize:  e.int("SWEEP_BATCH_SIZE", 50),
		},
		ReferenceSalt: e.str("REFERENCE_SALT", "paygate"),
	}
	if e.err != nil {
		return nil, e.err
	}

	if cfg.PaymentsEnv != "sandbox" && cfg.PaymentsEnv != "live" {
		return nil, fmt.Errorf("PAYMENTS_ENV must be sandbox or live, got %q", cfg.PaymentsEnv)
	}
	if cfg.Auth.Token == "" && cfg.Auth.TokenHash == "" {
		return nil, errors.New("API_TOKEN or API_TOKEN_HASH is required")
	}

	providers, err := loadProviders(&e, cfg.PaymentsEnv == "live")
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers
	return cfg, nil
}

var (
	opayVars = []string{
		"OPAY_MERCHANT_ID", "OPAY_PUBLIC_KEY", "OPAY_PRIVATE_KEY", "OPAY_COUNTRY", "OPAY_CURRENCY",
		"OPAY_BASE_URL", "OPAY_RETURN_URL", "OPAY_CALLBACK_URL", "OPAY_CANCEL_URL",
	}
	mpesaVars = []string{
		"MPESA_CONSUMER_KEY", "MPESA_CONSUMER_SECRET", "MPESA_SHORTCODE", "MPESA_PASSKEY",
		"MPESA_CALLBACK_URL", "MPESA_TRANSACTION_TYPE", "MPESA_BASE_URL",
	}
	nsanoVars = []string{"NSANO_API_KEY", "NSANO_SHORT_NAME", "NSANO_BASE_URL"}
)

// loadProviders enables a provider as soon as any of its variables is set; a partially
// configured provider is an error rather than a silently disabled one.
func loadProviders(e *env, live bool) (payments.ProvidersConfig, error) {
	var pc payments.ProvidersConfig

	if e.anySet(opayVars...) {
		c := &payments.OPayConfig{
			MerchantID:  e.str("OPAY_MERCHANT_ID", ""),
			PublicKey:   e.str("OPAY_PUBLIC_KEY", ""),
			PrivateKey:  e.str("OPAY_PRIVATE_KEY", ""),
			Country:     e.str("OPAY_COUNTRY", "NG"),
			Currency:    e.str("OPAY_CURRENCY", "NGN"),
			BaseURL:     e.str("OPAY_BASE_URL", ""),
			ReturnURL:   e.str("OPAY_RETURN_URL", ""),
			CallbackURL: e.str("OPAY_CALLBACK_URL", ""),
			CancelURL:   e.str("OPAY_CANCEL_URL", ""),
			Live:        live,
		}
		if err := required("opay", map[string]string{
			"OPAY_MERCHANT_ID": c.MerchantID,
			"OPAY_PUBLIC_KEY":  c.PublicKey,
			"OPAY_PRIVATE_KEY": c.PrivateKey,
		}); err != nil {
			return pc, err
		}
		pc.OPay = c
	}

	if e.anySet(mpesaVars...) {
		c := &payments.MpesaConfig{
			ConsumerKey:     e.str("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  e.str("MPESA_CONSUMER_SECRET", ""),
			ShortCode:       e.str("MPESA_SHORTCODE", ""),
			PassKey:         e.str("MPESA_PASSKEY", ""),
			CallbackURL:     e.str("MPESA_CALLBACK_URL", ""),
			TransactionType: e.str("MPESA_TRANSACTION_TYPE", ""),
			BaseURL:         e.str("MPESA_BASE_URL", ""),
			Live:            live,
		}
		if err := required("mpesa", map[string]string{
			"MPESA_CONSUMER_KEY":    c.ConsumerKey,
			"MPESA_CONSUMER_SECRET": c.ConsumerSecret,
			"MPESA_SHORTCODE":       c.ShortCode,
			"MPESA_PASSKEY":         c.PassKey,
			"MPESA_CALLBACK_URL":    c.CallbackURL,
		}); err != nil {
			return pc, err
		}
		pc.Mpesa = c
	}

	if e.anySet(nsanoVars...) {
		c := &payments.NsanoConfig{
			APIKey:    e.str("NSANO_API_KEY", ""),
			ShortName: e.str("NSANO_SHORT_NAME", ""),
			BaseURL:   e.str("NSANO_BASE_URL", ""),
		}
		if err := required("nsano", map[string]string{
			"NSANO_API_KEY":    c.APIKey,
			"NSANO_SHORT_NAME": c.ShortName,
			"NSANO_BASE_URL":   c.BaseURL,
		}); err != nil {
			return pc, err
		}
		pc.Nsano = c
	}

	return pc, nil
}

func required(provider string, vars map[string]string) error {
	var missing []string
	for k, v := range vars {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%s: %s not set: %w", provider, strings.Join(missing, ", "), payments.ErrMissingCredentials)
}
