package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bher20/stromdeals/internal/catalog"
	"github.com/bher20/stromdeals/internal/metrics"
	"github.com/bher20/stromdeals/internal/vendorapi"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	svc   *catalog.Service
	store Pinger
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewMux constructs the HTTP mux, wiring in the catalog service, metrics, and health endpoints.
// store may be nil, in which case /readyz always reports ready.
func NewMux(svc *catalog.Service, store Pinger, log logrus.FieldLogger) *http.ServeMux {
	s := &Server{svc: svc, store: store, log: log.WithField("component", "api"), now: time.Now}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	mux.HandleFunc("GET /api/v1/offers", s.handleOffers)
	mux.HandleFunc("GET /api/v1/offers/{id}", s.handleDetail)
	mux.HandleFunc("GET /api/v1/offers/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/dump", s.handleDump)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/vendors", s.handleVendors)
	mux.HandleFunc("GET /api/v1/vendors/{slug}/offers", s.handleVendorOffers)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)

	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.log.WithError(err).Warn("readyz: db ping failed")
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// observe counts a request and records its duration when the returned func runs.
func observe(endpoint string) func() {
	start := time.Now()
	metrics.RequestsTotal.WithLabelValues(endpoint).Inc()
	return func() {
		metrics.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrNoDump):
		return http.StatusServiceUnavailable
	case errors.Is(err, vendorapi.ErrNotConfigured):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, endpoint string, code int, err error) {
	metrics.RequestErrorsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("endpoint", endpoint).Error("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeJSON encodes v before committing the status. A value that cannot be
// encoded is answered with a 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		metrics.RequestErrorsTotal.WithLabelValues("encode", strconv.Itoa(http.StatusInternalServerError)).Inc()
		b, code = []byte(`{"error":"internal error"}`), http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(b, '\n'))
}
