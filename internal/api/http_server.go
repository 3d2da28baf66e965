package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"gardenplots/internal/config"
	"gardenplots/internal/metrics"
	"gardenplots/internal/models"
	"gardenplots/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiPrefix       = "/api/v1"
	requestIDHeader = "X-Request-ID"
)

// Services are the application operations behind the HTTP API.
type Services struct {
	Gardens  *service.GardenService
	Bookings *service.BookingService
	Users    *service.UserService
	Chat     *service.ChatService
	// Ready reports whether the store can serve requests.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the REST API and the chat stream.
type HTTPServer struct {
	svc     Services
	auth    *JWTAuthenticator
	limiter *rateLimiter
	log     zerolog.Logger
	server  *http.Server

	// пользователи, уже синхронизированные с локальной таблицей
	knownUsers sync.Map
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		svc:     svc,
		auth:    NewJWTAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// SSE handlers clear the deadline per response
		WriteTimeout: 30 * time.Second,
	}
	return srv
}

// Handler builds the full router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.Get("/readyz", s.handleReady)

		// public
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitByIP)
			r.Get("/gardens", s.handleListGardens)
			r.Get("/gardens/available", s.handleListAvailable)
			r.Get("/gardens/search", s.handleSearchGardens)
			r.Get("/gardens/owner/{ownerID}", s.handleGardensByOwner)
			r.Get("/gardens/{id}", s.handleGetGarden)
			r.Get("/users/{id}", s.handlePublicProfile)
		})

		// bearer
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.rateLimitByUser)
			r.Use(s.ensureUser)

			r.Post("/gardens/{id}/bookings", s.handleReserve)
			r.Post("/bookings/{id}/cancel", s.handleCancel)
			r.Get("/bookings/{id}", s.handleGetBooking)
			r.Get("/bookings/{id}/receipt", s.handleReceipt)
			r.Get("/me/bookings", s.handleMyBookings)
			r.Get("/me/profile", s.handleMyProfile)
			r.Put("/me/profile", s.handleUpdateProfile)

			r.Get("/conversations", s.handleConversations)
			r.Get("/conversations/{userID}/messages", s.handleMessages)
			r.Post("/conversations/{userID}/messages", s.handleSendMessage)
			r.Get("/conversations/{userID}/stream", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/gardens", s.handleCreateGarden)
				r.Put("/gardens/{id}", s.handleUpdateGarden)
				r.Delete("/gardens/{id}", s.handleDeleteGarden)
				r.Get("/gardens/{id}/bookings", s.handleGardenBookings)
				r.Get("/admin/bookings/export", s.handleExport)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})
	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(route, rec.status, elapsed)

		s.log.Info().
			Str("request_id", w.Header().Get(requestIDHeader)).
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

func (s *HTTPServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ensureUser creates the local profile on the first authenticated request.
func (s *HTTPServer) ensureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if _, seen := s.knownUsers.Load(p.UserID); !seen && s.svc.Users != nil {
			if _, err := s.svc.Users.EnsureUser(r.Context(), p); err != nil {
				writeDomainError(w, err)
				return
			}
			s.knownUsers.Store(p.UserID, struct{}{})
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimitByIP(next http.Handler) http.Handler {
	return s.rateLimit(next, func(r *http.Request) string {
		return "ip:" + clientIP(r)
	})
}

func (s *HTTPServer) rateLimitByUser(next http.Handler) http.Handler {
	return s.rateLimit(next, func(r *http.Request) string {
		return "user:" + PrincipalFromContext(r.Context()).UserID
	})
}

func (s *HTTPServer) rateLimit(next http.Handler, key func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(key(r)) {
			w.Header().Set("Retry-After", retryAfterSeconds)
			writeError(w, http.StatusTooManyRequests, "RateLimited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func principal(r *http.Request) models.Principal {
	return PrincipalFromContext(r.Context())
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
