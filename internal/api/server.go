package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/khanhnv2901/seca-guard/internal/api/middleware"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	infraapi "github.com/khanhnv2901/seca-guard/internal/infrastructure/api"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxRequestBytes   = 1 << 20 // 1MB limit
	defaultListLimit  = 25
	limiterIdleExpiry = 5 * time.Minute
)

// ScanService runs scan sessions in the background
type ScanService interface {
	Submit(req evidence.ScanRequest) (infraapi.SessionView, error)
	Get(id string) (infraapi.SessionView, error)
	List(limit int) []infraapi.SessionView
	Subscribe(id string) ([]scan.State, <-chan scan.State, func(), error)
}

type HealthService interface {
	Check(ctx context.Context) error
}

type Config struct {
	Scans       ScanService
	History     scan.HistoryRepository
	Health      HealthService
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
}

// ScanRequestBody is the POST /scans payload. target_type accepts the same
// aliases as the CLI.
type ScanRequestBody struct {
	TargetType    string                        `json:"target_type"`
	Input         string                        `json:"input"`
	Wifi          *evidence.WifiNetworkSnapshot `json:"wifi,omitempty"`
	ObservedAt    time.Time                     `json:"observed_at,omitempty"`
	PrivacyEvents []evidence.PrivacyEvent       `json:"privacy_events,omitempty"`
}

type Server struct {
	cfg      Config
	router   chi.Router
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		limiters: newRateLimiterMap(),
	}
	srv.router = srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	// RequestID -> Logging -> Recoverer -> RateLimit -> CORS -> Auth -> Handler
	r.Use(middleware.RequestID, s.withLogging, chimiddleware.Recoverer, s.withRateLimit, s.withCORS)
	r.MethodNotAllowed(s.methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.withAuth)
		r.Get("/health", s.handleHealth)

		r.Route("/scans", func(r chi.Router) {
			r.Post("/", s.handleSubmitScan)
			r.Get("/", s.handleListScans)
			r.Get("/{id}", s.handleGetScan)
			r.Get("/{id}/events", s.handleScanEvents)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Get("/{id}", s.handleGetHistory)
			r.Delete("/{id}", s.handleDeleteHistory)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan service not available"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var body ScanRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	targetType, err := evidence.ParseTargetType(body.TargetType)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	view, err := s.cfg.Scans.Submit(evidence.ScanRequest{
		TargetType:    targetType,
		RawInput:      body.Input,
		Wifi:          body.Wifi,
		ObservedAt:    body.ObservedAt,
		PrivacyEvents: body.PrivacyEvents,
	})
	if err != nil {
		status := http.StatusBadRequest
		if !isClientError(err) {
			status = http.StatusInternalServerError
		}
		s.writeError(w, r, status, err)
		return
	}
	w.Header().Set("Location", "/api/v1/scans/"+view.ID)
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan service not available"))
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Scans.List(queryLimit(r)))
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan service not available"))
		return
	}
	view, err := s.cfg.Scans.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan not found"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleScanEvents streams a session timeline as server-sent events, starting
// with the events recorded before the client connected.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scans == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan service not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	replay, updates, unsubscribe, err := s.cfg.Scans.Subscribe(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan not found"))
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, st := range replay {
		if !s.writeEvent(w, r, st) {
			return
		}
	}
	flusher.Flush()
	if updates == nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}
			if !s.writeEvent(w, r, st) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, r *http.Request, st scan.State) bool {
	payload, err := json.Marshal(st)
	if err != nil {
		s.requestLogger(r).Error("failed to marshal scan state", zap.Error(err))
		return true
	}
	header := "id: " + strconv.FormatUint(st.Seq, 10) + "\nevent: " + strings.ToLower(string(st.Kind)) + "\ndata: "
	return s.writeStreamChunk(w, []byte(header)) &&
		s.writeStreamChunk(w, payload) &&
		s.writeStreamChunk(w, []byte("\n\n"))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("history not available"))
		return
	}
	results, err := s.cfg.History.List(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("history not available"))
		return
	}
	result, err := s.cfg.History.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeRepositoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("history not available"))
		return
	}
	if err := s.cfg.History.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeRepositoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeRepositoryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sharedErrors.ErrScanResultNotFound) {
		s.writeError(w, r, http.StatusNotFound, errors.New("scan result not found"))
		return
	}
	s.writeError(w, r, http.StatusInternalServerError, err)
}

func isClientError(err error) bool {
	return errors.Is(err, sharedErrors.ErrEmptyInput) ||
		errors.Is(err, sharedErrors.ErrUnsupportedTarget) ||
		errors.Is(err, sharedErrors.ErrInvalidSnapshot)
}

func queryLimit(r *http.Request) int {
	limit := defaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting if disabled
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddress(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddress prefers the first X-Forwarded-For hop and strips the port
func clientAddress(r *http.Request) string {
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		clientIP = strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		return host
	}
	return clientIP
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowedOrigin := range s.cfg.CORSOrigins {
				if allowedOrigin == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps server-sent events working through the wrapper
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		}
		return false
	}
	return true
}

// rateLimiterMap manages per-IP rate limiters. Idle entries are pruned on
// access rather than by a background goroutine.
type rateLimiterMap struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastPrune time.Time
	now       func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	return &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		now:      time.Now,
	}
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastPrune) > time.Minute {
		for key, l := range m.limiters {
			if now.Sub(l.lastSeen) > limiterIdleExpiry {
				delete(m.limiters, key)
			}
		}
		m.lastPrune = now
	}

	if burst <= 0 {
		burst = rps
	}
	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = now
	return limiter.limiter
}
