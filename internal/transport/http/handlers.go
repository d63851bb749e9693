// Package http is the thin HTTP layer: request decoding, payment headers, and
// response envelopes. Business logic lives in the query service.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgate/internal/payment"
	"trustgate/internal/platform/config"
	"trustgate/internal/platform/metrics"
	"trustgate/internal/query"
	"trustgate/internal/storage"
	pkgerrors "trustgate/pkg/errors"
	"trustgate/pkg/httputil"
	"trustgate/pkg/requestcontext"
)

// Handler wires the endpoints to the query service and registry store.
type Handler struct {
	service  *query.Service
	store    storage.RegistryStore
	prices   map[string]float64
	version  string
	dbStatus func(ctx context.Context) string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs the handler with its dependencies. dbStatus reports the
// backing store's health for the health endpoint.
func New(service *query.Service, store storage.RegistryStore, prices map[string]float64, version string, dbStatus func(ctx context.Context) string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		store:    store,
		prices:   prices,
		version:  version,
		dbStatus: dbStatus,
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   h.version,
		Database:  h.dbStatus(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) HandleRegistries(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.ListRegistries(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list registries failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRegistryInfos(infos))
}

type trustQueryRequest struct {
	Entity struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"entity"`
	Context string `json:"context"`
}

// HandleTrustQuery handles POST /v1/trust/query. The payment gate runs before
// body validation: every request to a paid endpoint produces a ledger row.
func (h *Handler) HandleTrustQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(config.EndpointTrustQuery, start)

	var req trustQueryRequest
	decodeErr := httputil.Decode(r, &req)

	outcome, result, err := h.service.QueryEntity(
		r.Context(),
		h.paymentRequest(r, config.EndpointTrustQuery),
		req.Entity.Type, req.Entity.Identifier, req.Context,
	)
	if h.denied(w, r, outcome, err) {
		return
	}
	if decodeErr != nil {
		httputil.WriteError(w, decodeErr)
		return
	}
	if err != nil {
		h.logError(r, config.EndpointTrustQuery, err)
		httputil.WriteError(w, err)
		return
	}

	h.setSettlement(w, outcome)
	httputil.WriteJSON(w, http.StatusOK, fromTrustResult(result.Result, result.GeneratedAt))
}

// HandleTrustEntity handles GET /v1/trust/entity/{address}.
func (h *Handler) HandleTrustEntity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(config.EndpointTrustEntity, start)

	address := chi.URLParam(r, "address")
	trustContext := r.URL.Query().Get("context")

	outcome, result, err := h.service.QueryByAddress(
		r.Context(),
		h.paymentRequest(r, config.EndpointTrustEntity),
		address, trustContext,
	)
	if h.denied(w, r, outcome, err) {
		return
	}
	if err != nil {
		h.logError(r, config.EndpointTrustEntity, err)
		httputil.WriteError(w, err)
		return
	}

	h.setSettlement(w, outcome)
	httputil.WriteJSON(w, http.StatusOK, fromAddressResult(result))
}

// HandleTrustTop handles GET /v1/trust/top.
func (h *Handler) HandleTrustTop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe(config.EndpointTrustTop, start)

	params := r.URL.Query()
	trustContext := params.Get("context")
	limit := 10
	var limitErr error
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			limitErr = pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, "limit must be an integer", err)
		} else {
			limit = parsed
		}
	}
	var registrySlugs []string
	if raw := params.Get("registry_slugs"); raw != "" {
		registrySlugs = strings.Split(raw, ",")
	}

	outcome, result, err := h.service.TopEntities(
		r.Context(),
		h.paymentRequest(r, config.EndpointTrustTop),
		trustContext, limit, registrySlugs,
	)
	if h.denied(w, r, outcome, err) {
		return
	}
	if limitErr != nil {
		httputil.WriteError(w, limitErr)
		return
	}
	if err != nil {
		h.logError(r, config.EndpointTrustTop, err)
		httputil.WriteError(w, err)
		return
	}

	h.setSettlement(w, outcome)
	httputil.WriteJSON(w, http.StatusOK, fromTopResult(result))
}

// paymentRequest assembles the gate input from the inbound request.
func (h *Handler) paymentRequest(r *http.Request, endpoint string) payment.Request {
	return payment.Request{
		Resource: canonicalURL(r),
		Endpoint: endpoint,
		PriceUSD: h.prices[endpoint],
		Proof:    r.Header.Get(payment.HeaderPaymentProof),
		Payment:  r.Header.Get(payment.HeaderPayment),
	}
}

// denied writes the 402 challenge when the gate refused, or the internal
// error when the gate itself failed (e.g. a ledger write error). Returns true
// when the response has been written.
func (h *Handler) denied(w http.ResponseWriter, r *http.Request, outcome payment.Outcome, err error) bool {
	if err != nil && outcome.Challenge == nil && !outcome.Granted {
		h.logError(r, r.URL.Path, err)
		httputil.WriteError(w, pkgerrors.Wrap(pkgerrors.CodeInternal, "payment evaluation failed", err))
		return true
	}
	if !outcome.Granted {
		httputil.WriteJSON(w, http.StatusPaymentRequired, outcome.Challenge)
		return true
	}
	return false
}

func (h *Handler) setSettlement(w http.ResponseWriter, outcome payment.Outcome) {
	if outcome.SettlementHeader != "" {
		w.Header().Set(payment.HeaderPaymentResponse, outcome.SettlementHeader)
	}
}

func (h *Handler) observe(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveQueryDuration(endpoint, time.Since(start))
	}
}

func (h *Handler) logError(r *http.Request, endpoint string, err error) {
	code := pkgerrors.CodeOf(err)
	if code == pkgerrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"endpoint", endpoint,
			"error", err,
		)
		return
	}
	h.logger.InfoContext(r.Context(), "request rejected",
		"request_id", requestcontext.RequestID(r.Context()),
		"endpoint", endpoint,
		"code", code,
	)
}

// canonicalURL reconstructs the full request URL for the payment requirement
// resource field.
func canonicalURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + r.URL.Path
}
