package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestFromEnv() {
	s.Run("defaults apply with an empty environment", func() {
		cfg, err := FromEnv()
		s.Require().NoError(err)

		s.Equal(":8080", cfg.Addr)
		s.Equal(PaymentModeMock, cfg.Payment.Mode)
		s.Equal("solana", cfg.Payment.Network)
		s.Equal(60*time.Second, cfg.Payment.Timeout)
		s.Equal(0.01, cfg.Payment.Prices[EndpointTrustQuery])
		s.Equal(0.01, cfg.Payment.Prices[EndpointTrustEntity])
		s.Equal(0.01, cfg.Payment.Prices[EndpointTrustTop])
		s.Equal(100, cfg.RateLimit)
		s.Equal(time.Minute, cfg.RateLimitWindow)
		s.Equal(0.6, cfg.Thresholds.Allow)
		s.Equal(0.3, cfg.Thresholds.Limit)
		s.Equal(0.1, cfg.Thresholds.Review)
	})

	s.Run("rejects an unknown payment mode", func() {
		s.T().Setenv("PAYMENT_MODE", "sometimes")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("live mode requires a merchant address", func() {
		s.T().Setenv("PAYMENT_MODE", PaymentModeLive)
		_, err := FromEnv()
		s.Require().Error(err)
		s.Contains(err.Error(), "MERCHANT_ADDRESS")

		s.T().Setenv("MERCHANT_ADDRESS", "MerchantAddr")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Equal(PaymentModeLive, cfg.Payment.Mode)
	})

	s.Run("price override applies to every paid endpoint", func() {
		s.T().Setenv("TRUSTGATE_PRICE_USD", "0.05")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Equal(0.05, cfg.Payment.Prices[EndpointTrustQuery])
		s.Equal(0.05, cfg.Payment.Prices[EndpointTrustTop])
	})

	s.Run("rejects an unparsable price", func() {
		s.T().Setenv("TRUSTGATE_PRICE_USD", "a lot")
		_, err := FromEnv()
		s.Error(err)
	})

	s.Run("kafka brokers split on commas", func() {
		s.T().Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Equal([]string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	})

	s.Run("threshold overrides apply", func() {
		s.T().Setenv("TRUST_THRESHOLD_ALLOW", "0.8")
		s.T().Setenv("TRUST_THRESHOLD_LIMIT", "0.5")
		s.T().Setenv("TRUST_THRESHOLD_REVIEW", "0.2")
		cfg, err := FromEnv()
		s.Require().NoError(err)
		s.Equal(0.8, cfg.Thresholds.Allow)
		s.Equal(0.5, cfg.Thresholds.Limit)
		s.Equal(0.2, cfg.Thresholds.Review)
	})

	s.Run("per-context override applies to that context only", func() {
		s.T().Setenv("TRUST_THRESHOLD_RUGGER_CHECK_REVIEW", "0.25")
		cfg, err := FromEnv()
		s.Require().NoError(err)

		s.Equal(0.25, cfg.ThresholdsFor("rugger_check").Review)
		s.Equal(0.1, cfg.ThresholdsFor("copy_trading").Review)
		// Fields without a per-context value inherit from the global table.
		s.Equal(0.6, cfg.ThresholdsFor("rugger_check").Allow)
	})

	s.Run("per-context override layers on the global override", func() {
		s.T().Setenv("TRUST_THRESHOLD_ALLOW", "0.7")
		s.T().Setenv("TRUST_THRESHOLD_COPY_TRADING_LIMIT", "0.4")
		cfg, err := FromEnv()
		s.Require().NoError(err)

		copyTrading := cfg.ThresholdsFor("copy_trading")
		s.Equal(0.7, copyTrading.Allow)
		s.Equal(0.4, copyTrading.Limit)
		s.Equal(0.7, cfg.ThresholdsFor("rugger_check").Allow)
	})

	s.Run("rejects an unparsable per-context threshold", func() {
		s.T().Setenv("TRUST_THRESHOLD_COPY_TRADING_ALLOW", "lots")
		_, err := FromEnv()
		s.Error(err)
	})
}
