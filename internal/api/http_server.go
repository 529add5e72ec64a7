package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentflow/internal/config"
	"rentflow/internal/domain"
	"rentflow/internal/logging"
	"rentflow/internal/metrics"
	"rentflow/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// ItemReader resolves catalog items.
type ItemReader interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
}

// Services are the domain operations exposed over HTTP.
type Services struct {
	Bookings      domain.BookingService
	Wallet        domain.WalletService
	Confirmations domain.ConfirmationService
	Checkout      domain.CheckoutService
	Items         ItemReader
}

// HTTPServer exposes the marketplace operations as a JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	mux    *http.ServeMux
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		mux:    http.NewServeMux(),
		auth:   NewHTTPAuth(cfg),
		logger: logging.Component(logger, "http"),
	}
	srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	s.mux.HandleFunc("GET /api/v1/bookings/{id}", s.handleGetBooking)
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/accept", s.bookingAction(s.svc.Bookings.AcceptBooking))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/decline", s.bookingAction(s.svc.Bookings.DeclineBooking))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/counter-offer", s.handleCounterOffer)
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/counter-offer/accept", s.bookingAction(s.svc.Bookings.AcceptCounterOffer))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/counter-offer/decline", s.bookingAction(s.svc.Bookings.DeclineCounterOffer))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", s.bookingAction(s.svc.Bookings.CancelBooking))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/pay", s.bookingAction(s.svc.Checkout.PayBooking))
	s.mux.HandleFunc("POST /api/v1/bookings/{id}/confirm/{party}", s.handleConfirm)
	s.mux.HandleFunc("GET /api/v1/bookings/{id}/confirmation", s.handleConfirmationStatus)

	s.mux.HandleFunc("GET /api/v1/me/bookings", s.handleRenterBookings)
	s.mux.HandleFunc("GET /api/v1/me/requests", s.handleOwnerRequests)
	s.mux.HandleFunc("GET /api/v1/me/rentals", s.handleOwnerRentals)

	s.mux.HandleFunc("GET /api/v1/items/{id}", s.handleGetItem)
	s.mux.HandleFunc("GET /api/v1/items/{id}/unavailable", s.handleUnavailableRanges)

	s.mux.HandleFunc("GET /api/v1/wallet", s.handleGetWallet)
	s.mux.HandleFunc("POST /api/v1/wallet", s.handleCreateWallet)
	s.mux.HandleFunc("GET /api/v1/wallet/transactions", s.handleWalletTransactions)
	s.mux.HandleFunc("POST /api/v1/wallet/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("POST /api/v1/wallet/withdraw-all", s.handleWithdrawAll)
	s.mux.HandleFunc("GET /api/v1/wallet/statement", s.handleStatement)
}

// Handler is the full middleware chain: access log, auth and rate limit, routes.
func (s *HTTPServer) Handler() http.Handler {
	return s.loggingMiddleware(s.auth.Wrap(s.mux))
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := s.logger.With().Str("request_id", requestID).Logger()
		r = r.WithContext(logging.WithContext(r.Context(), &reqLogger))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		_, pattern := s.mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTP(pattern, recorder.status, dur)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

// actorID reads the authenticated user id forwarded by the gateway.
func (s *HTTPServer) actorID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(s.cfg.HTTP.ActorHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case "validation", "insufficient_funds":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeJSON(w, code, map[string]string{
		"error": err.Error(),
		"kind":  domain.KindOf(err),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
