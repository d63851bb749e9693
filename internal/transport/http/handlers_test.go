package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgate/internal/domain"
	"trustgate/internal/payment"
	"trustgate/internal/platform/config"
	"trustgate/internal/query"
	"trustgate/internal/storage"
	"trustgate/internal/trust"
)

type HandlersSuite struct {
	suite.Suite
	store  *storage.InMemoryRegistryStore
	ledger *storage.InMemoryPaymentLedger
	server http.Handler
	ctx    context.Context
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.store = storage.NewInMemoryRegistryStore()
	s.ledger = storage.NewInMemoryPaymentLedger()
	s.ctx = context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := payment.NewMockGate(s.ledger, logger, nil, payment.NetworkSolana, "MerchantAddr")
	aggregator := trust.New(s.store, trust.DefaultRuleset())
	service := query.New(gate, aggregator, logger)

	prices := map[string]float64{
		config.EndpointTrustQuery:  0.01,
		config.EndpointTrustEntity: 0.01,
		config.EndpointTrustTop:    0.01,
	}
	dbStatus := func(context.Context) string { return "memory" }
	handler := New(service, s.store, prices, "test", dbStatus, logger, nil)
	s.server = NewRouter(handler, logger, RouterOptions{})
}

func (s *HandlersSuite) seedWallet(address string, score float64) {
	registry, err := s.store.UpsertRegistry(s.ctx, domain.Registry{
		Slug:    "seed-registry",
		Name:    "Seed Registry",
		Context: trust.ContextCopyTrading,
	})
	s.Require().NoError(err)
	entity, err := s.store.UpsertEntity(s.ctx, domain.Entity{
		Chain:       domain.ChainSolana,
		Type:        domain.EntityTypeWallet,
		Address:     address,
		DisplayName: "Seeded Wallet",
	})
	s.Require().NoError(err)
	_, err = s.store.UpsertEntry(s.ctx, domain.RegistryEntry{
		RegistryID: registry.ID,
		EntityID:   entity.ID,
		Score:      score,
		ComputedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
}

func (s *HandlersSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) paidRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(payment.HeaderPaymentProof, "test-proof")
	return req
}

func (s *HandlersSuite) TestHealth() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("ok", body["status"])
	s.Equal("test", body["version"])
	s.Equal("memory", body["database"])
	s.NotEmpty(body["timestamp"])
	s.NotEmpty(rec.Header().Get("X-Request-Id"))
}

func (s *HandlersSuite) TestRegistries() {
	s.seedWallet("W1", 0.5)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/registries", nil))
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Registries []struct {
			Slug       string `json:"slug"`
			Context    string `json:"context"`
			EntryCount int64  `json:"entry_count"`
		} `json:"registries"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Len(body.Registries, 1)
	s.Equal("seed-registry", body.Registries[0].Slug)
	s.Equal(trust.ContextCopyTrading, body.Registries[0].Context)
	s.Equal(int64(1), body.Registries[0].EntryCount)
}

func (s *HandlersSuite) TestTrustQuery() {
	s.Run("without payment returns the 402 challenge", func() {
		body := `{"entity":{"type":"wallet","identifier":"W1"},"context":"copy_trading"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/trust/query", strings.NewReader(body))

		rec := s.do(req)
		s.Require().Equal(http.StatusPaymentRequired, rec.Code)

		var challenge struct {
			X402Version int    `json:"x402Version"`
			Error       string `json:"error"`
			Accepts     []struct {
				Scheme            string `json:"scheme"`
				Network           string `json:"network"`
				MaxAmountRequired string `json:"maxAmountRequired"`
				PayTo             string `json:"payTo"`
			} `json:"accepts"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &challenge))
		s.Equal(1, challenge.X402Version)
		s.Equal("payment required", challenge.Error)
		s.Require().Len(challenge.Accepts, 1)
		s.Equal("exact", challenge.Accepts[0].Scheme)
		s.Equal("10000", challenge.Accepts[0].MaxAmountRequired)
		s.Equal("MerchantAddr", challenge.Accepts[0].PayTo)

		attempts := s.ledger.Attempts()
		s.Require().Len(attempts, 1)
		s.Equal(domain.PaymentStatusPending, attempts[0].Status)
	})

	s.Run("with payment returns the judgment", func() {
		s.seedWallet("W1", 0.7)
		body := `{"entity":{"type":"wallet","identifier":"W1"},"context":"copy_trading"}`

		rec := s.do(s.paidRequest(http.MethodPost, "/v1/trust/query", body))
		s.Require().Equal(http.StatusOK, rec.Code)

		var result struct {
			EntityID     string  `json:"entity_id"`
			Context      string  `json:"context"`
			Score        float64 `json:"score"`
			DecisionHint string  `json:"decision_hint"`
			Provenance   []struct {
				Registry string `json:"registry"`
			} `json:"provenance"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.Equal("copy_trading", result.Context)
		s.Equal(0.7, result.Score)
		s.Equal("allow", result.DecisionHint)
		s.Require().Len(result.Provenance, 1)
		s.Equal("seed-registry", result.Provenance[0].Registry)
	})

	s.Run("unknown entity returns the neutral judgment", func() {
		body := `{"entity":{"type":"wallet","identifier":"W3"},"context":"copy_trading"}`

		rec := s.do(s.paidRequest(http.MethodPost, "/v1/trust/query", body))
		s.Require().Equal(http.StatusOK, rec.Code)

		var result struct {
			Score        float64 `json:"score"`
			DecisionHint string  `json:"decision_hint"`
			Provenance   []any   `json:"provenance"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.Equal(0.0, result.Score)
		s.Equal("review", result.DecisionHint)
		s.NotNil(result.Provenance)
		s.Empty(result.Provenance)
	})

	s.Run("malformed body with payment is a 400", func() {
		rec := s.do(s.paidRequest(http.MethodPost, "/v1/trust/query", "{not json"))
		s.Require().Equal(http.StatusBadRequest, rec.Code)

		var body map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("invalid_request", body["error"])
	})

	s.Run("malformed body still gets challenged without payment", func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/trust/query", strings.NewReader("{not json"))
		rec := s.do(req)
		s.Equal(http.StatusPaymentRequired, rec.Code)
	})

	s.Run("unknown context is a 404", func() {
		body := `{"entity":{"type":"wallet","identifier":"W1"},"context":"no_such_context"}`
		rec := s.do(s.paidRequest(http.MethodPost, "/v1/trust/query", body))
		s.Require().Equal(http.StatusNotFound, rec.Code)

		var errBody map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &errBody))
		s.Equal("not_found", errBody["error"])
	})
}

func (s *HandlersSuite) TestTrustEntity() {
	s.Run("groups contexts for an address", func() {
		s.seedWallet("ADDR1", 0.65)

		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/entity/ADDR1", ""))
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Results []struct {
				EntityID     string `json:"entity_id"`
				Context      string `json:"context"`
				DecisionHint string `json:"decision_hint"`
			} `json:"results"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Len(body.Results, 1)
		s.Equal("ADDR1", body.Results[0].EntityID)
		s.Equal("copy_trading", body.Results[0].Context)
		s.Equal("allow", body.Results[0].DecisionHint)
	})

	s.Run("unknown address is a 404", func() {
		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/entity/NOBODY", ""))
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("without payment returns the 402 challenge", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/trust/entity/ADDR1", nil))
		s.Equal(http.StatusPaymentRequired, rec.Code)
	})
}

func (s *HandlersSuite) TestTrustTop() {
	s.Run("returns the leaderboard", func() {
		s.seedWallet("TOP1", 0.9)

		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/top?context=copy_trading&limit=5", ""))
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Context  string `json:"context"`
			Limit    int    `json:"limit"`
			Count    int    `json:"count"`
			Entities []struct {
				DisplayName  string  `json:"display_name"`
				Score        float64 `json:"score"`
				DecisionHint string  `json:"decision_hint"`
				Registry     string  `json:"registry"`
			} `json:"entities"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("copy_trading", body.Context)
		s.Equal(5, body.Limit)
		s.Equal(1, body.Count)
		s.Require().Len(body.Entities, 1)
		s.Equal("Seeded Wallet", body.Entities[0].DisplayName)
		s.Equal(0.9, body.Entities[0].Score)
		s.Equal("allow", body.Entities[0].DecisionHint)
	})

	s.Run("limit defaults to ten", func() {
		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/top?context=copy_trading", ""))
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Limit int `json:"limit"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(10, body.Limit)
	})

	s.Run("out-of-range limit is a 400", func() {
		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/top?context=copy_trading&limit=500", ""))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("non-integer limit is a 400", func() {
		rec := s.do(s.paidRequest(http.MethodGet, "/v1/trust/top?context=copy_trading&limit=abc", ""))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("without payment returns the 402 challenge", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/trust/top?context=copy_trading", nil))
		s.Equal(http.StatusPaymentRequired, rec.Code)
	})
}
