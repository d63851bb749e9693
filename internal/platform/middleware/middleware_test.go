package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustgate/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MiddlewareSuite) TestRequestID() {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
		s.False(requestcontext.Now(r.Context()).IsZero())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	s.NotEmpty(seen)
	s.Equal(seen, rec.Header().Get("X-Request-Id"))

	s.Run("each request gets a fresh ID", func() {
		first := seen
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
		s.NotEqual(first, seen)
	})
}

func (s *MiddlewareSuite) TestRequestLogger() {
	handler := RequestLogger(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	s.Equal(http.StatusTeapot, rec.Code)
}

func (s *MiddlewareSuite) TestRateLimitWithoutRedis() {
	// A nil client disables limiting entirely.
	handler := RateLimit(nil, 1, time.Minute, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/registries", nil))
		s.Equal(http.StatusOK, rec.Code)
	}
}

func (s *MiddlewareSuite) TestClientIP() {
	s.Run("prefers X-Forwarded-For", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		req.RemoteAddr = "10.0.0.1:1234"
		s.Equal("203.0.113.9", ClientIP(req))
	})

	s.Run("takes the first hop of a multi-proxy list", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2, 10.0.0.3")
		req.RemoteAddr = "10.0.0.1:1234"
		s.Equal("203.0.113.9", ClientIP(req))
	})

	s.Run("falls back to the remote host", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		s.Equal("10.0.0.1", ClientIP(req))
	})
}
