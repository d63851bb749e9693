// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Payment modes.
const (
	PaymentModeMock = "mock"
	PaymentModeLive = "live"
)

// Payment captures payment gate configuration.
type Payment struct {
	Mode            string
	FacilitatorURL  string
	MerchantAddress string
	Network         string
	Timeout         time.Duration
	// Prices maps paid endpoint paths to their USD price.
	Prices map[string]float64
}

// Config captures everything the server needs at startup.
type Config struct {
	Addr         string
	Version      string
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
	Payment      Payment

	// Rate limit for free endpoints, requests per window per client IP.
	// Applies only when Redis is configured.
	RateLimit       int
	RateLimitWindow time.Duration

	// Thresholds is the global decision threshold table; ContextThresholds
	// holds per-context overrides layered on top of it.
	Thresholds        Thresholds
	ContextThresholds map[string]Thresholds
}

// Thresholds is a 3-level decision threshold table.
type Thresholds struct {
	Allow  float64
	Limit  float64
	Review float64
}

// ThresholdsFor returns the threshold table for a context, falling back to the
// global table when no override is set.
func (c Config) ThresholdsFor(context string) Thresholds {
	if t, ok := c.ContextThresholds[context]; ok {
		return t
	}
	return c.Thresholds
}

// Paid endpoint paths.
const (
	EndpointTrustQuery  = "/v1/trust/query"
	EndpointTrustEntity = "/v1/trust/entity"
	EndpointTrustTop    = "/v1/trust/top"
)

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("TRUSTGATE_ADDR", ":8080"),
		Version:         envOr("TRUSTGATE_VERSION", "dev"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaTopic:      os.Getenv("KAFKA_TOPIC"),
		RateLimit:       100,
		RateLimitWindow: time.Minute,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	mode := envOr("PAYMENT_MODE", PaymentModeMock)
	if mode != PaymentModeMock && mode != PaymentModeLive {
		return Config{}, fmt.Errorf("PAYMENT_MODE must be %q or %q, got %q", PaymentModeMock, PaymentModeLive, mode)
	}

	price, err := envFloat("TRUSTGATE_PRICE_USD", 0.01)
	if err != nil {
		return Config{}, err
	}

	timeoutSeconds, err := envInt("FACILITATOR_TIMEOUT_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}

	cfg.Payment = Payment{
		Mode:            mode,
		FacilitatorURL:  envOr("FACILITATOR_URL", "https://facilitator.payai.network"),
		MerchantAddress: os.Getenv("MERCHANT_ADDRESS"),
		Network:         envOr("PAYMENT_NETWORK", "solana"),
		Timeout:         time.Duration(timeoutSeconds) * time.Second,
		Prices: map[string]float64{
			EndpointTrustQuery:  price,
			EndpointTrustEntity: price,
			EndpointTrustTop:    price,
		},
	}

	if mode == PaymentModeLive && cfg.Payment.MerchantAddress == "" {
		return Config{}, fmt.Errorf("MERCHANT_ADDRESS is required in live payment mode")
	}

	if cfg.Thresholds.Allow, err = envFloat("TRUST_THRESHOLD_ALLOW", 0.6); err != nil {
		return Config{}, err
	}
	if cfg.Thresholds.Limit, err = envFloat("TRUST_THRESHOLD_LIMIT", 0.3); err != nil {
		return Config{}, err
	}
	if cfg.Thresholds.Review, err = envFloat("TRUST_THRESHOLD_REVIEW", 0.1); err != nil {
		return Config{}, err
	}

	cfg.ContextThresholds = make(map[string]Thresholds)
	for _, name := range []string{"copy_trading", "rugger_check"} {
		override, ok, err := thresholdOverride("TRUST_THRESHOLD_"+strings.ToUpper(name), cfg.Thresholds)
		if err != nil {
			return Config{}, err
		}
		if ok {
			cfg.ContextThresholds[name] = override
		}
	}

	return cfg, nil
}

// thresholdOverride reads a per-context threshold table from <prefix>_ALLOW,
// <prefix>_LIMIT and <prefix>_REVIEW. Unset fields inherit from base; ok is
// false when none of the three variables is set.
func thresholdOverride(prefix string, base Thresholds) (Thresholds, bool, error) {
	allowKey, limitKey, reviewKey := prefix+"_ALLOW", prefix+"_LIMIT", prefix+"_REVIEW"
	if os.Getenv(allowKey) == "" && os.Getenv(limitKey) == "" && os.Getenv(reviewKey) == "" {
		return Thresholds{}, false, nil
	}

	t := base
	var err error
	if t.Allow, err = envFloat(allowKey, base.Allow); err != nil {
		return Thresholds{}, false, err
	}
	if t.Limit, err = envFloat(limitKey, base.Limit); err != nil {
		return Thresholds{}, false, err
	}
	if t.Review, err = envFloat(reviewKey, base.Review); err != nil {
		return Thresholds{}, false, err
	}
	return t, true, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
